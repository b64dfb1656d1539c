package profiles

import (
	"context"

	"github.com/google/uuid"

	"github.com/sweetcrumb/storefront/pkg/db/models"
	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
)

type repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	UpsertDetails(ctx context.Context, profile *models.Profile) (*models.Profile, error)
	EnsureExists(ctx context.Context, id uuid.UUID, fullName string) (*models.Profile, error)
	SetStripeCustomerIfAbsent(ctx context.Context, id uuid.UUID, ref string) (bool, error)
}

// Service is the profile store used by the account page and checkout.
type Service struct {
	repo repository
}

func NewService(repo repository) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profile repository required")
	}
	return &Service{repo: repo}, nil
}

// Get returns the caller's profile, or nil when none exists yet.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error) {
	profile, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load profile")
	}
	return FromModel(profile), nil
}

// Update replaces the seven editable fields as a unit.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, input UpdateInput) (*ProfileDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	stored, err := s.repo.UpsertDetails(ctx, input.toModel(userID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update profile")
	}
	return FromModel(stored), nil
}

// Ensure returns the profile, creating a minimal one if absent.
func (s *Service) Ensure(ctx context.Context, userID uuid.UUID, fullName string) (*models.Profile, error) {
	profile, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load profile")
	}
	if profile != nil {
		return profile, nil
	}
	profile, err = s.repo.EnsureExists(ctx, userID, fullName)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create profile")
	}
	return profile, nil
}

// LinkPaymentCustomer records ref as the user's payment customer unless one
// is already stored, and returns the reference that is stored afterwards.
func (s *Service) LinkPaymentCustomer(ctx context.Context, userID uuid.UUID, ref string) (string, error) {
	if ref == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment customer reference required")
	}
	won, err := s.repo.SetStripeCustomerIfAbsent(ctx, userID, ref)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodePersistence, err, "persist payment customer")
	}
	if won {
		return ref, nil
	}

	profile, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodePersistence, err, "reload profile")
	}
	if profile == nil || profile.StripeCustomerID == nil || *profile.StripeCustomerID == "" {
		return "", pkgerrors.New(pkgerrors.CodePersistence, "profile missing while linking payment customer")
	}
	return *profile.StripeCustomerID, nil
}
