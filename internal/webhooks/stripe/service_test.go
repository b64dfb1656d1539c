package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sweetcrumb/storefront/internal/orders"
	"github.com/sweetcrumb/storefront/pkg/db/models"
	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	"github.com/sweetcrumb/storefront/pkg/logger"
	"github.com/sweetcrumb/storefront/pkg/metrics"
)

func setupLedger(t *testing.T) (*orders.Ledger, *gorm.DB) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(`
CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  supabase_user_id TEXT,
  product_ids TEXT NOT NULL DEFAULT '',
  amount_total INTEGER NOT NULL,
  currency TEXT NOT NULL,
  payment_status TEXT NOT NULL,
  stripe_customer_id TEXT,
  created_at DATETIME
);`).Error)

	ledger, err := orders.NewLedger(orders.NewRepository(conn))
	require.NoError(t, err)
	return ledger, conn
}

func newTestService(t *testing.T, ledger orderLedger) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Ledger: ledger,
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc
}

func completedEvent(t *testing.T, sessionID string, metadata map[string]string) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":             sessionID,
		"object":         "checkout.session",
		"amount_total":   2400,
		"currency":       "usd",
		"payment_status": "paid",
		"status":         "complete",
		"customer":       "cus_123",
		"metadata":       metadata,
	})
	require.NoError(t, err)
	return &stripe.Event{
		ID:   "evt_" + sessionID,
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestCompletedSessionRecordedOnce(t *testing.T) {
	ledger, conn := setupLedger(t)
	svc := newTestService(t, ledger)
	userID := uuid.New()
	event := completedEvent(t, "cs_test_1", map[string]string{
		"productIds":       "cc-6,hh-12",
		"supabase_user_id": userID.String(),
	})

	outcome, err := svc.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, metrics.WebhookRecorded, outcome)

	outcome, err = svc.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, metrics.WebhookDuplicate, outcome)

	var rows []models.Order
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	order := rows[0]
	assert.Equal(t, "cs_test_1", order.ID)
	assert.Equal(t, "cc-6,hh-12", order.ProductIDs)
	assert.Equal(t, int64(2400), order.AmountTotal)
	assert.Equal(t, "usd", order.Currency)
	assert.Equal(t, "paid", order.PaymentStatus)
	require.NotNil(t, order.UserID)
	assert.Equal(t, userID, *order.UserID)
	require.NotNil(t, order.StripeCustomerID)
	assert.Equal(t, "cus_123", *order.StripeCustomerID)
}

func TestCompletedSessionWithoutUser(t *testing.T) {
	ledger, conn := setupLedger(t)
	svc := newTestService(t, ledger)

	outcome, err := svc.HandleEvent(context.Background(), completedEvent(t, "cs_test_2", map[string]string{
		"supabase_user_id": "not-a-uuid",
	}))
	require.NoError(t, err)
	assert.Equal(t, metrics.WebhookRecorded, outcome)

	var order models.Order
	require.NoError(t, conn.First(&order, "id = ?", "cs_test_2").Error)
	assert.Nil(t, order.UserID)
}

func TestOtherEventsIgnored(t *testing.T) {
	ledger, conn := setupLedger(t)
	svc := newTestService(t, ledger)

	outcome, err := svc.HandleEvent(context.Background(), &stripe.Event{
		ID:   "evt_other",
		Type: stripe.EventTypePaymentIntentSucceeded,
		Data: &stripe.EventData{Raw: []byte(`{"id":"pi_1"}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, metrics.WebhookIgnored, outcome)

	var count int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

type failingLedger struct{}

func (failingLedger) Record(context.Context, orders.RecordInput) (bool, error) {
	return false, pkgerrors.Wrap(pkgerrors.CodePersistence, errors.New("connection reset"), "record order")
}

func TestLedgerFailureSurfaces(t *testing.T) {
	svc := newTestService(t, failingLedger{})

	outcome, err := svc.HandleEvent(context.Background(), completedEvent(t, "cs_test_3", nil))
	require.Error(t, err)
	assert.Equal(t, metrics.WebhookFailed, outcome)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePersistence))
}

func TestMalformedSessionRejected(t *testing.T) {
	svc := newTestService(t, failingLedger{})

	_, err := svc.HandleEvent(context.Background(), &stripe.Event{
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: []byte(`{"amount_total":"many"}`)},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.HandleEvent(context.Background(), nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
