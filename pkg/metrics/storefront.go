package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes.
const (
	OutcomeSuccess         = "success"
	OutcomeValidation      = "validation"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeUpstream        = "upstream"
	OutcomePersistence     = "persistence"
	OutcomeConfiguration   = "configuration"
	OutcomeError           = "error"
)

// Webhook outcomes.
const (
	WebhookRecorded  = "recorded"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookRejected  = "rejected"
	WebhookFailed    = "failed"
)

// StorefrontMetrics records checkout, webhook and HTTP activity.
type StorefrontMetrics struct {
	checkouts        *prometheus.CounterVec
	checkoutDuration prometheus.Histogram
	customersCreated prometheus.Counter
	webhooks         *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewStorefrontMetrics registers the storefront metrics on the provided registerer.
func NewStorefrontMetrics(reg prometheus.Registerer) *StorefrontMetrics {
	if reg == nil {
		return &StorefrontMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkout_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	checkoutDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_checkout_duration_seconds",
		Help:    "Time to produce a payment redirect.",
		Buckets: prometheus.DefBuckets,
	})
	customersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_payment_customers_created_total",
		Help: "Payment-processor customers created during checkout.",
	})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_webhook_events_total",
		Help: "Payment webhook deliveries by event type and outcome.",
	}, []string{"type", "outcome"})
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	reg.MustRegister(checkouts, checkoutDuration, customersCreated, webhooks, httpRequests, httpDuration)
	return &StorefrontMetrics{
		checkouts:        checkouts,
		checkoutDuration: checkoutDuration,
		customersCreated: customersCreated,
		webhooks:         webhooks,
		httpRequests:     httpRequests,
		httpDuration:     httpDuration,
	}
}

// ObserveCheckout records the outcome and latency of one checkout attempt.
func (m *StorefrontMetrics) ObserveCheckout(outcome string, duration time.Duration) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.checkoutDuration.Observe(duration.Seconds())
}

// IncCustomerCreated counts a newly created payment customer.
func (m *StorefrontMetrics) IncCustomerCreated() {
	if m == nil || m.customersCreated == nil {
		return
	}
	m.customersCreated.Inc()
}

// IncWebhook counts a webhook delivery.
func (m *StorefrontMetrics) IncWebhook(eventType, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// ObserveHTTP records one served request.
func (m *StorefrontMetrics) ObserveHTTP(method, route, status string, duration time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	route = normalizeLabel(route)
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
