package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sweetcrumb/storefront/internal/repo"
	"github.com/sweetcrumb/storefront/pkg/db/models"
	"github.com/sweetcrumb/storefront/pkg/pagination"
)

// Repository is the append-only order ledger.
type Repository struct {
	repo.Base
}

// NewRepository constructs an orders repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Insert writes the order unless a row with the same id already exists.
// It reports whether a new row was written.
func (r *Repository) Insert(ctx context.Context, order *models.Order) (bool, error) {
	res := r.DB(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(order)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindByID loads an order by its payment session id.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.DB(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByUser returns one page of a user's orders, newest first, starting
// after the cursor. The returned cursor is nil on the last page.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int, after *pagination.Cursor) ([]models.Order, *pagination.Cursor, error) {
	normalized := pagination.NormalizeLimit(limit)
	q := r.DB(ctx).
		Where("supabase_user_id = ?", userID)
	if after != nil {
		q = q.Where("(created_at, id) < (?, ?)", after.CreatedAt, after.ID)
	}

	var out []models.Order
	err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(normalized)).
		Find(&out).Error
	if err != nil {
		return nil, nil, err
	}

	if len(out) > normalized {
		out = out[:normalized]
		last := out[normalized-1]
		return out, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return out, nil, nil
}
