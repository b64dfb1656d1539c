package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sweetcrumb/storefront/pkg/db/models"
	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	"github.com/sweetcrumb/storefront/pkg/pagination"
)

const (
	DefaultListLimit = pagination.DefaultLimit
	MaxListLimit     = pagination.MaxLimit
)

type repository interface {
	Insert(ctx context.Context, order *models.Order) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int, after *pagination.Cursor) ([]models.Order, *pagination.Cursor, error)
}

// Ledger records completed payments exactly once per payment session.
type Ledger struct {
	repo repository
	now  func() time.Time
}

func NewLedger(repo repository) (*Ledger, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	return &Ledger{repo: repo, now: time.Now}, nil
}

// Record inserts the order, or does nothing if the session was already
// recorded. The boolean reports whether a new row was written.
func (l *Ledger) Record(ctx context.Context, in RecordInput) (bool, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "payment session id required")
	}

	order := &models.Order{
		ID:            in.SessionID,
		UserID:        in.UserID,
		ProductIDs:    in.ProductIDs,
		AmountTotal:   in.AmountTotalCents,
		Currency:      strings.ToLower(in.Currency),
		PaymentStatus: in.PaymentStatus,
		CreatedAt:     l.now().UTC(),
	}
	if in.CustomerRef != "" {
		ref := in.CustomerRef
		order.StripeCustomerID = &ref
	}

	inserted, err := l.repo.Insert(ctx, order)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "record order")
	}
	return inserted, nil
}

// ListResult is one page of order history. Cursor is empty on the last page.
type ListResult struct {
	Orders []OrderDTO `json:"orders"`
	Cursor string     `json:"cursor"`
}

// ListForUser returns one page of the user's orders, newest first. A
// non-positive limit means DefaultListLimit.
func (l *Ledger) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ListResult, error) {
	after, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := l.repo.ListByUser(ctx, userID, pagination.NormalizeLimit(params.Limit), after)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list orders")
	}

	result := &ListResult{Orders: make([]OrderDTO, 0, len(rows))}
	for _, row := range rows {
		result.Orders = append(result.Orders, FromModel(row))
	}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}
