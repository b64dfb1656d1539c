package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/sweetcrumb/storefront/api/responses"
	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	"github.com/sweetcrumb/storefront/pkg/logger"
	"github.com/sweetcrumb/storefront/pkg/metrics"
	"github.com/sweetcrumb/storefront/pkg/types"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) (string, error)
}

type stripeWebhookGuard interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

type webhookCounter interface {
	IncWebhook(eventType, outcome string)
}

// StripeWebhookParams wires the webhook endpoint. Client may be nil when
// payments are not configured; every delivery then fails with 500.
type StripeWebhookParams struct {
	Service      StripeWebhookService
	Client       stripeClient
	Guard        stripeWebhookGuard
	Metrics      webhookCounter
	Logger       *logger.Logger
	MaxBodyBytes int64
}

const defaultMaxBodyBytes = 1 << 20

// StripeWebhook verifies and records payment provider events. A redelivered
// event id is acknowledged without reprocessing; a failed event is never
// marked, so the provider's retry can succeed.
func StripeWebhook(p StripeWebhookParams) http.HandlerFunc {
	if p.MaxBodyBytes <= 0 {
		p.MaxBodyBytes = defaultMaxBodyBytes
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		event, err := p.verify(w, r)
		if err != nil {
			responses.WriteError(ctx, p.Logger, w, err)
			return
		}
		if p.Logger != nil {
			ctx = p.Logger.WithFields(ctx, map[string]any{"event_id": event.ID, "event_type": string(event.Type)})
		}
		if err := p.process(ctx, &event); err != nil {
			responses.WriteError(ctx, p.Logger, w, err)
			return
		}
		responses.WriteSuccess(w, types.WebhookAck{Received: true})
	}
}

// verify reads the bounded payload and checks its Stripe-Signature.
func (p StripeWebhookParams) verify(w http.ResponseWriter, r *http.Request) (stripe.Event, error) {
	if p.Service == nil || p.Guard == nil {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeInternal, "webhook handler unavailable")
	}
	var secret string
	if p.Client != nil {
		secret = strings.TrimSpace(p.Client.SigningSecret())
	}
	if secret == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeConfiguration, "webhook signing secret not configured")
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, p.MaxBodyBytes))
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "payload too large")
	case err != nil:
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		p.count("", metrics.WebhookRejected)
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeSignature, "Missing signature")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		p.count("", metrics.WebhookRejected)
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeSignature, err, "Invalid signature")
	}
	return event, nil
}

// process applies event once per id. Duplicates return nil without work.
// The id is marked only after the service succeeds, so a failed delivery
// stays retryable even when Redis is unreachable.
func (p StripeWebhookParams) process(ctx context.Context, event *stripe.Event) error {
	kind := string(event.Type)
	seen, err := p.Guard.Seen(ctx, event.ID)
	if err != nil {
		return err
	}
	if seen {
		p.count(kind, metrics.WebhookDuplicate)
		return nil
	}

	outcome, err := p.Service.HandleEvent(ctx, event)
	p.count(kind, outcome)
	if err != nil {
		return err
	}
	if err := p.Guard.Mark(context.WithoutCancel(ctx), event.ID); err != nil && p.Logger != nil {
		p.Logger.Error(ctx, "webhook.guard.mark", err)
	}
	if p.Logger != nil {
		p.Logger.Info(p.Logger.WithField(ctx, "outcome", outcome), "webhook.processed")
	}
	return nil
}

func (p StripeWebhookParams) count(eventType, outcome string) {
	if p.Metrics == nil || outcome == "" {
		return
	}
	p.Metrics.IncWebhook(eventType, outcome)
}
