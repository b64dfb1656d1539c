package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sweetcrumb/storefront/pkg/db/models"
)

// RecordInput is what a completed payment session tells us about an order.
type RecordInput struct {
	SessionID        string
	UserID           *uuid.UUID
	ProductIDs       string
	AmountTotalCents int64
	Currency         string
	PaymentStatus    string
	CustomerRef      string
}

// OrderDTO is the account-page view of an order.
type OrderDTO struct {
	ID            string    `json:"id"`
	ProductIDs    []string  `json:"product_ids"`
	AmountTotal   int64     `json:"amount_total"`
	AmountDisplay string    `json:"amount_display"`
	Currency      string    `json:"currency"`
	PaymentStatus string    `json:"payment_status"`
	CreatedAt     time.Time `json:"created_at"`
}

func FromModel(o models.Order) OrderDTO {
	ids := []string{}
	for _, id := range strings.Split(o.ProductIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return OrderDTO{
		ID:            o.ID,
		ProductIDs:    ids,
		AmountTotal:   o.AmountTotal,
		AmountDisplay: decimal.New(o.AmountTotal, -2).StringFixed(2),
		Currency:      o.Currency,
		PaymentStatus: o.PaymentStatus,
		CreatedAt:     o.CreatedAt,
	}
}
