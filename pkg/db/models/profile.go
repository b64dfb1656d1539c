package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile holds the contact and shipping details of a user plus the
// payment-processor customer linked to them. The row id is the user id.
type Profile struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	FullName         string    `gorm:"column:full_name;not null;default:''"`
	Phone            string    `gorm:"column:phone;not null;default:''"`
	AddressLine1     string    `gorm:"column:address_line1;not null;default:''"`
	AddressLine2     string    `gorm:"column:address_line2;not null;default:''"`
	City             string    `gorm:"column:city;not null;default:''"`
	State            string    `gorm:"column:state;not null;default:''"`
	PostalCode       string    `gorm:"column:postal_code;not null;default:''"`
	StripeCustomerID *string   `gorm:"column:stripe_customer_id"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (Profile) TableName() string { return "profiles" }
