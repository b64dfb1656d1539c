package profiles

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sweetcrumb/storefront/internal/repo"
	"github.com/sweetcrumb/storefront/pkg/db/models"
)

// Repository persists profiles. The profile row id is the owning user's id.
type Repository struct {
	repo.Base
	now func() time.Time
}

// NewRepository constructs a profiles repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db), now: time.Now}
}

// FindByID returns the profile or nil when the user has none yet.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	err := r.DB(ctx).First(&profile, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpsertDetails writes the contact and address fields as one unit, inserting
// the row when absent. The payment customer reference is never touched here.
func (r *Repository) UpsertDetails(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	profile.UpdatedAt = r.now().UTC()
	err := r.DB(ctx).
		Omit("stripe_customer_id").
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"full_name",
				"phone",
				"address_line1",
				"address_line2",
				"city",
				"state",
				"postal_code",
				"updated_at",
			}),
		}).
		Create(profile).Error
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, profile.ID)
}

// EnsureExists inserts a minimal profile when none exists and returns the
// stored row either way.
func (r *Repository) EnsureExists(ctx context.Context, id uuid.UUID, fullName string) (*models.Profile, error) {
	profile := &models.Profile{
		ID:        id,
		FullName:  fullName,
		UpdatedAt: r.now().UTC(),
	}
	err := r.DB(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(profile).Error
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// SetStripeCustomerIfAbsent stores ref only when the profile has no customer
// yet. It reports whether this call won; losers should reload the profile.
func (r *Repository) SetStripeCustomerIfAbsent(ctx context.Context, id uuid.UUID, ref string) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Profile{}).
		Where("id = ? AND (stripe_customer_id IS NULL OR stripe_customer_id = '')", id).
		Updates(map[string]any{
			"stripe_customer_id": ref,
			"updated_at":         r.now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
