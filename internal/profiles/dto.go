package profiles

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sweetcrumb/storefront/pkg/db/models"
)

// ProfileDTO is the wire shape returned by the profile endpoints.
type ProfileDTO struct {
	ID               uuid.UUID `json:"id"`
	FullName         string    `json:"full_name"`
	Phone            string    `json:"phone"`
	AddressLine1     string    `json:"address_line1"`
	AddressLine2     string    `json:"address_line2"`
	City             string    `json:"city"`
	State            string    `json:"state"`
	PostalCode       string    `json:"postal_code"`
	StripeCustomerID *string   `json:"stripe_customer_id"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// UpdateInput carries the seven editable fields. Nil means the caller sent
// null or left the field out; it is stored as an empty string.
type UpdateInput struct {
	FullName     *string `json:"full_name" validate:"omitempty,max=200"`
	Phone        *string `json:"phone" validate:"omitempty,max=200"`
	AddressLine1 *string `json:"address_line1" validate:"omitempty,max=200"`
	AddressLine2 *string `json:"address_line2" validate:"omitempty,max=200"`
	City         *string `json:"city" validate:"omitempty,max=200"`
	State        *string `json:"state" validate:"omitempty,max=200"`
	PostalCode   *string `json:"postal_code" validate:"omitempty,max=200"`
}

func FromModel(p *models.Profile) *ProfileDTO {
	if p == nil {
		return nil
	}
	return &ProfileDTO{
		ID:               p.ID,
		FullName:         p.FullName,
		Phone:            p.Phone,
		AddressLine1:     p.AddressLine1,
		AddressLine2:     p.AddressLine2,
		City:             p.City,
		State:            p.State,
		PostalCode:       p.PostalCode,
		StripeCustomerID: p.StripeCustomerID,
		UpdatedAt:        p.UpdatedAt,
	}
}

func (in UpdateInput) toModel(id uuid.UUID) *models.Profile {
	return &models.Profile{
		ID:           id,
		FullName:     clean(in.FullName),
		Phone:        clean(in.Phone),
		AddressLine1: clean(in.AddressLine1),
		AddressLine2: clean(in.AddressLine2),
		City:         clean(in.City),
		State:        clean(in.State),
		PostalCode:   clean(in.PostalCode),
	}
}

func clean(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}
