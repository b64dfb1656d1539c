package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() == name {
			return fam
		}
	}
	return nil
}

func TestCheckoutAndWebhookCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStorefrontMetrics(reg)

	m.ObserveCheckout(OutcomeSuccess, 120*time.Millisecond)
	m.ObserveCheckout(OutcomeSuccess, 80*time.Millisecond)
	m.ObserveCheckout("", time.Millisecond)
	m.IncCustomerCreated()
	m.IncWebhook("checkout.session.completed", WebhookRecorded)
	m.IncWebhook("checkout.session.completed", WebhookDuplicate)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.checkouts.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkouts.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.customersCreated))
	assert.Equal(t, 2, testutil.CollectAndCount(m.webhooks))

	fam := gatherFamily(t, reg, "storefront_checkout_duration_seconds")
	require.NotNil(t, fam)
	require.Len(t, fam.GetMetric(), 1)
	assert.Equal(t, uint64(3), fam.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestObserveHTTPLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStorefrontMetrics(reg)

	m.ObserveHTTP("GET", "/api/v1/cart", "200", 5*time.Millisecond)
	m.ObserveHTTP("GET", "", "404", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/cart", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unknown", "404")))

	fam := gatherFamily(t, reg, "storefront_http_request_duration_seconds")
	require.NotNil(t, fam)
	assert.Len(t, fam.GetMetric(), 2)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *StorefrontMetrics
	assert.NotPanics(t, func() {
		m.ObserveCheckout(OutcomeError, time.Second)
		m.IncCustomerCreated()
		m.IncWebhook("x", WebhookFailed)
		m.ObserveHTTP("GET", "/", "500", time.Second)
	})

	unregistered := NewStorefrontMetrics(nil)
	assert.NotPanics(t, func() {
		unregistered.ObserveCheckout(OutcomeSuccess, time.Second)
		unregistered.IncWebhook("x", WebhookRecorded)
	})
}
