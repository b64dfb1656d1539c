package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sweetcrumb/storefront/api/responses"
	"github.com/sweetcrumb/storefront/api/validators"
	"github.com/sweetcrumb/storefront/internal/profiles"
	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	"github.com/sweetcrumb/storefront/pkg/logger"
)

type ProfileService interface {
	Get(ctx context.Context, userID uuid.UUID) (*profiles.ProfileDTO, error)
	Update(ctx context.Context, userID uuid.UUID, input profiles.UpdateInput) (*profiles.ProfileDTO, error)
}

type profileEnvelope struct {
	Profile *profiles.ProfileDTO `json:"profile"`
}

// ProfileGet returns the caller's profile, or null when none exists yet.
func ProfileGet(svc ProfileService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "profile service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profileEnvelope{Profile: dto})
	}
}

// ProfileUpdate replaces the caller's contact and shipping fields as a unit.
// Omitted or null fields are stored as empty strings.
func ProfileUpdate(svc ProfileService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "profile service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input profiles.UpdateInput
		if err := validators.DecodeJSONBody(w, r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Update(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profileEnvelope{Profile: dto})
	}
}
