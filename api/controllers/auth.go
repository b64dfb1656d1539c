package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sweetcrumb/storefront/api/middleware"
	"github.com/sweetcrumb/storefront/api/responses"
	"github.com/sweetcrumb/storefront/api/validators"
	"github.com/sweetcrumb/storefront/internal/auth"
	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	"github.com/sweetcrumb/storefront/pkg/logger"
)

// AuthService is the slice of auth.Service the HTTP layer drives.
type AuthService interface {
	SignUp(ctx context.Context, req auth.SignUpRequest) (*auth.Session, error)
	SignIn(ctx context.Context, req auth.SignInRequest) (*auth.Session, error)
	SignOut(ctx context.Context, identity *auth.Identity) error
	CurrentSession(ctx context.Context, accessToken string) (*auth.Identity, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*auth.Session, error)
}

type sessionEnvelope struct {
	Session *auth.Identity `json:"session"`
}

func AuthSignUp(svc AuthService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}
		var req auth.SignUpRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sess, err := svc.SignUp(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sess)
	}
}

func AuthSignIn(svc AuthService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}
		var req auth.SignInRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sess, err := svc.SignIn(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sess)
	}
}

// AuthSignOut revokes the session behind the presented access token.
// Expects Auth middleware upstream.
func AuthSignOut(svc AuthService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}
		identity, err := identityFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SignOut(r.Context(), identity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sessionEnvelope{})
	}
}

// AuthSession returns the current session or null for anonymous callers.
// A token that is present but no longer valid is a 401.
func AuthSession(svc AuthService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}
		token := middleware.BearerToken(r)
		if token == "" {
			responses.WriteSuccess(w, sessionEnvelope{})
			return
		}
		identity, err := svc.CurrentSession(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sessionEnvelope{Session: identity})
	}
}

// AuthRefresh rotates the refresh token. The access token in the
// Authorization header may already be expired.
func AuthRefresh(svc AuthService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}
		token := middleware.BearerToken(r)
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		var req auth.RefreshRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sess, err := svc.Refresh(r.Context(), token, req.RefreshToken)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sess)
	}
}

func identityFromRequest(r *http.Request) (*auth.Identity, error) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		return nil, err
	}
	return &auth.Identity{
		UserID:    userID,
		Email:     middleware.EmailFromContext(r.Context()),
		SessionID: middleware.SessionIDFromContext(r.Context()),
	}, nil
}

func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}
