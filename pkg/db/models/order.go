package models

import (
	"time"

	"github.com/google/uuid"
)

// Order is an append-only record of a completed checkout session.
// ID is the payment session id, which makes redelivered events collapse.
type Order struct {
	ID               string     `gorm:"column:id;primaryKey"`
	UserID           *uuid.UUID `gorm:"column:supabase_user_id;type:uuid"`
	ProductIDs       string     `gorm:"column:product_ids;not null;default:''"`
	AmountTotal      int64      `gorm:"column:amount_total;not null"`
	Currency         string     `gorm:"column:currency;not null"`
	PaymentStatus    string     `gorm:"column:payment_status;not null"`
	StripeCustomerID *string    `gorm:"column:stripe_customer_id"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
}

func (Order) TableName() string { return "orders" }
