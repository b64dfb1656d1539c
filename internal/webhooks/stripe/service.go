package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sweetcrumb/storefront/internal/checkout"
	"github.com/sweetcrumb/storefront/internal/orders"
	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	"github.com/sweetcrumb/storefront/pkg/logger"
	"github.com/sweetcrumb/storefront/pkg/metrics"
	"github.com/sweetcrumb/storefront/pkg/tracing"
)

type orderLedger interface {
	Record(ctx context.Context, in orders.RecordInput) (bool, error)
}

type ServiceParams struct {
	Ledger orderLedger
	Logger *logger.Logger
}

// Service turns verified Stripe events into ledger writes.
type Service struct {
	ledger orderLedger
	logg   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order ledger required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{ledger: params.Ledger, logg: params.Logger}, nil
}

// HandleEvent records completed checkout sessions and acknowledges every
// other event type. The returned outcome is one of the metrics.Webhook*
// values.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (string, error) {
	if event == nil || event.Data == nil {
		return metrics.WebhookRejected, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	ctx, span := tracing.StartSpan(ctx, "webhook.stripe.handle",
		attribute.String("event.id", event.ID),
		attribute.String("event.type", string(event.Type)))
	defer span.End()

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return metrics.WebhookRejected, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
		}
		return s.recordSession(ctx, &sess)
	default:
		return metrics.WebhookIgnored, nil
	}
}

func (s *Service) recordSession(ctx context.Context, sess *stripe.CheckoutSession) (string, error) {
	ctx = s.logg.WithField(ctx, "session_id", sess.ID)

	inserted, err := s.ledger.Record(ctx, orders.RecordInput{
		SessionID:        sess.ID,
		UserID:           s.userFromMetadata(ctx, sess.Metadata),
		ProductIDs:       sess.Metadata[checkout.MetadataProductIDs],
		AmountTotalCents: sess.AmountTotal,
		Currency:         string(sess.Currency),
		PaymentStatus:    paymentStatus(sess),
		CustomerRef:      customerRef(sess),
	})
	if err != nil {
		return metrics.WebhookFailed, err
	}
	if !inserted {
		s.logg.Info(ctx, "checkout session already recorded")
		return metrics.WebhookDuplicate, nil
	}
	s.logg.Info(ctx, "order recorded")
	return metrics.WebhookRecorded, nil
}

// userFromMetadata returns nil for sessions created outside the storefront,
// which still become orders without an owner.
func (s *Service) userFromMetadata(ctx context.Context, md map[string]string) *uuid.UUID {
	raw := strings.TrimSpace(md[checkout.MetadataUserID])
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "metadata_user_id", raw), "ignoring malformed user id on checkout session")
		return nil
	}
	return &id
}

func paymentStatus(sess *stripe.CheckoutSession) string {
	if sess.PaymentStatus != "" {
		return string(sess.PaymentStatus)
	}
	return string(sess.Status)
}

func customerRef(sess *stripe.CheckoutSession) string {
	if sess.Customer == nil {
		return ""
	}
	return sess.Customer.ID
}
