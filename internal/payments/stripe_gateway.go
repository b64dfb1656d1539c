package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/customer"

	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	pkgstripe "github.com/sweetcrumb/storefront/pkg/stripe"
)

const shippingCountry = "US"

// MetadataUserID links processor objects back to the local user.
const MetadataUserID = "supabase_user_id"

// StripeGateway implements Gateway on Stripe customers and Checkout sessions.
type StripeGateway struct {
	newCustomer func(params *stripe.CustomerParams) (*stripe.Customer, error)
	newSession  func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewStripeGateway requires an initialized client; a nil client means Stripe
// is not configured.
func NewStripeGateway(client *pkgstripe.Client) (*StripeGateway, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "stripe client not configured")
	}
	return &StripeGateway{
		newCustomer: customer.New,
		newSession:  session.New,
	}, nil
}

// CreateCustomer creates a customer carrying the local user id in metadata.
// The idempotency key is derived from the user and the submitted details, so
// a double submit of the same checkout yields one customer.
func (g *StripeGateway) CreateCustomer(ctx context.Context, details CustomerDetails) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	if details.Email != "" {
		params.Email = stripe.String(details.Email)
	}
	if details.Name != "" {
		params.Name = stripe.String(details.Name)
	}
	if details.Phone != "" {
		params.Phone = stripe.String(details.Phone)
	}
	if !details.Address.IsZero() {
		params.Address = &stripe.AddressParams{
			Line1:      optional(details.Address.Line1),
			Line2:      optional(details.Address.Line2),
			City:       optional(details.Address.City),
			State:      optional(details.Address.State),
			PostalCode: optional(details.Address.PostalCode),
			Country:    stripe.String(shippingCountry),
		}
	}
	params.AddMetadata(MetadataUserID, details.UserID)
	params.SetIdempotencyKey(customerIdempotencyKey(details))

	created, err := g.newCustomer(params)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "create stripe customer")
	}
	if created == nil || created.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeUpstream, "stripe customer id missing")
	}
	return created.ID, nil
}

// CreateCheckoutSession opens a payment-mode session that collects a US
// shipping address and writes it back onto the customer.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if len(req.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session needs at least one line")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: []*string{stripe.String(shippingCountry)},
		},
	}
	params.Context = ctx
	if req.CustomerRef != "" {
		params.Customer = stripe.String(req.CustomerRef)
		params.CustomerUpdate = &stripe.CheckoutSessionCustomerUpdateParams{
			Shipping: stripe.String("auto"),
			Address:  stripe.String("auto"),
		}
	}
	for _, line := range req.Lines {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(line.PriceRef),
			Quantity: stripe.Int64(line.Quantity),
		})
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	created, err := g.newSession(params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "create stripe checkout session")
	}
	if created == nil || created.URL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "stripe checkout session url missing")
	}
	return &Session{ID: created.ID, URL: created.URL}, nil
}

func customerIdempotencyKey(d CustomerDetails) string {
	fields := []string{d.UserID, d.Email, d.Name, d.Phone, d.Address.Line1, d.Address.Line2, d.Address.City, d.Address.State, d.Address.PostalCode}
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return fmt.Sprintf("customer-create:%s:%s", d.UserID, hex.EncodeToString(sum[:8]))
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return stripe.String(v)
}
