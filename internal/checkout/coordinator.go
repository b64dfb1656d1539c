package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/sweetcrumb/storefront/internal/cart"
	"github.com/sweetcrumb/storefront/internal/catalog"
	"github.com/sweetcrumb/storefront/internal/payments"
	"github.com/sweetcrumb/storefront/pkg/db/models"
	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	"github.com/sweetcrumb/storefront/pkg/logger"
	"github.com/sweetcrumb/storefront/pkg/metrics"
	"github.com/sweetcrumb/storefront/pkg/tracing"
)

// Metadata keys read back by the webhook handler.
const (
	MetadataProductIDs = "productIds"
	MetadataUserID     = payments.MetadataUserID
)

var (
	ErrEmptyCart     = pkgerrors.New(pkgerrors.CodeValidation, "Cart is empty")
	ErrNoValidItems  = pkgerrors.New(pkgerrors.CodeValidation, "No valid items in cart")
	ErrAuthRequired  = pkgerrors.New(pkgerrors.CodeUnauthorized, "Authentication required")
	ErrNotConfigured = pkgerrors.New(pkgerrors.CodeConfiguration, "payment gateway not configured")
)

// CustomerIdentity is the authenticated caller starting a checkout.
type CustomerIdentity struct {
	UserID uuid.UUID
	Email  string
}

type profileStore interface {
	Ensure(ctx context.Context, userID uuid.UUID, fullName string) (*models.Profile, error)
	LinkPaymentCustomer(ctx context.Context, userID uuid.UUID, ref string) (string, error)
}

type productResolver interface {
	Resolve(productID string) (catalog.Product, bool)
}

// Params wires the coordinator's collaborators. Gateway may be nil when the
// payment processor is not configured; every checkout then fails with a
// configuration error.
type Params struct {
	Profiles      profileStore
	Catalog       productResolver
	Gateway       payments.Gateway
	Logger        *logger.Logger
	Metrics       *metrics.StorefrontMetrics
	PublicBaseURL string
}

// Coordinator turns a cart into a hosted payment session.
type Coordinator struct {
	profiles profileStore
	catalog  productResolver
	gateway  payments.Gateway
	logg     *logger.Logger
	metrics  *metrics.StorefrontMetrics
	baseURL  string
	creating singleflight.Group
}

func NewCoordinator(p Params) (*Coordinator, error) {
	if p.Profiles == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profile store required")
	}
	if p.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog required")
	}
	if p.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if strings.TrimSpace(p.PublicBaseURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "public base url required")
	}
	return &Coordinator{
		profiles: p.Profiles,
		catalog:  p.Catalog,
		gateway:  p.Gateway,
		logg:     p.Logger,
		metrics:  p.Metrics,
		baseURL:  strings.TrimRight(p.PublicBaseURL, "/"),
	}, nil
}

// InitiateCheckout validates the cart, resolves the caller's payment customer
// and returns the hosted session's redirect URL. Nothing is written to the
// order ledger here; orders are recorded only from completed-session events.
func (c *Coordinator) InitiateCheckout(ctx context.Context, items []cart.LineItem, identity *CustomerIdentity) (url string, err error) {
	started := time.Now()
	ctx, span := tracing.StartSpan(ctx, "checkout.initiate", attribute.Int("cart.lines", len(items)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "checkout failed")
		}
		span.End()
		c.metrics.ObserveCheckout(outcomeFor(err), time.Since(started))
	}()

	if len(items) == 0 {
		return "", ErrEmptyCart
	}
	if identity == nil || identity.UserID == uuid.Nil {
		return "", ErrAuthRequired
	}
	if c.gateway == nil {
		c.logg.Error(ctx, "checkout attempted without payment gateway", ErrNotConfigured)
		return "", ErrNotConfigured
	}

	ctx = c.logg.WithUserID(ctx, identity.UserID.String())
	span.SetAttributes(attribute.String("user.id", identity.UserID.String()))

	// A cart with no valid lines must not create a profile or a customer.
	lines, productIDs := c.resolveLines(items)
	if len(lines) == 0 {
		return "", ErrNoValidItems
	}

	profile, err := c.profiles.Ensure(ctx, identity.UserID, "")
	if err != nil {
		c.logg.Error(ctx, "checkout profile lookup failed", err)
		return "", err
	}

	customerRef, err := c.resolveCustomer(ctx, identity, profile)
	if err != nil {
		c.logg.Error(ctx, "checkout customer resolution failed", err)
		return "", err
	}

	sess, err := c.gateway.CreateCheckoutSession(ctx, payments.SessionRequest{
		CustomerRef: customerRef,
		Lines:       lines,
		Metadata: map[string]string{
			MetadataProductIDs: strings.Join(productIDs, ","),
			MetadataUserID:     identity.UserID.String(),
		},
		SuccessURL: c.baseURL + "/success",
		CancelURL:  c.baseURL + "/cancel",
	})
	if err != nil {
		c.logg.Error(ctx, "checkout session creation failed", err)
		return "", err
	}

	c.logg.Info(c.logg.WithField(ctx, "session_id", sess.ID), "checkout session created")
	return sess.URL, nil
}

const customerCreateTimeout = 30 * time.Second

// resolveCustomer reuses the stored reference or creates one. Concurrent
// checkouts for the same user in this process share one creation; across
// processes the conditional profile update decides the winner and the loser
// adopts it.
func (c *Coordinator) resolveCustomer(ctx context.Context, identity *CustomerIdentity, profile *models.Profile) (string, error) {
	if profile.StripeCustomerID != nil && *profile.StripeCustomerID != "" {
		return *profile.StripeCustomerID, nil
	}

	ctx, span := tracing.StartSpan(ctx, "checkout.create_customer")
	defer span.End()

	ref, err, _ := c.creating.Do(identity.UserID.String(), func() (any, error) {
		// Shared by every waiter, so it must not die with the first caller.
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), customerCreateTimeout)
		defer cancel()
		created, err := c.gateway.CreateCustomer(shared, customerDetails(identity, profile))
		if err != nil {
			return "", err
		}
		c.metrics.IncCustomerCreated()
		return c.profiles.LinkPaymentCustomer(shared, identity.UserID, created)
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return ref.(string), nil
}

func (c *Coordinator) resolveLines(items []cart.LineItem) ([]payments.SessionLine, []string) {
	lines := make([]payments.SessionLine, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			continue
		}
		product, ok := c.catalog.Resolve(item.ProductID)
		if !ok {
			continue
		}
		lines = append(lines, payments.SessionLine{
			PriceRef: product.ExternalPriceRef,
			Quantity: int64(item.Quantity),
		})
		ids = append(ids, product.ID)
	}
	return lines, ids
}

func customerDetails(identity *CustomerIdentity, profile *models.Profile) payments.CustomerDetails {
	name := strings.TrimSpace(profile.FullName)
	if name == "" {
		name = identity.Email
	}
	return payments.CustomerDetails{
		UserID: identity.UserID.String(),
		Email:  identity.Email,
		Name:   name,
		Phone:  profile.Phone,
		Address: payments.Address{
			Line1:      profile.AddressLine1,
			Line2:      profile.AddressLine2,
			City:       profile.City,
			State:      profile.State,
			PostalCode: profile.PostalCode,
		},
	}
}

func outcomeFor(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return metrics.OutcomeError
	}
	switch typed.Code() {
	case pkgerrors.CodeValidation:
		return metrics.OutcomeValidation
	case pkgerrors.CodeUnauthorized:
		return metrics.OutcomeUnauthenticated
	case pkgerrors.CodeUpstream:
		return metrics.OutcomeUpstream
	case pkgerrors.CodePersistence:
		return metrics.OutcomePersistence
	case pkgerrors.CodeConfiguration:
		return metrics.OutcomeConfiguration
	default:
		return metrics.OutcomeError
	}
}
