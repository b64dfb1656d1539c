package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweetcrumb/storefront/pkg/db/models"
	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	"github.com/sweetcrumb/storefront/pkg/pagination"
)

func TestLedgerRecordExactlyOnce(t *testing.T) {
	ledger, err := NewLedger(NewRepository(setupOrdersTestDB(t)))
	require.NoError(t, err)
	ctx := context.Background()
	user := uuid.New()

	in := RecordInput{
		SessionID:        "cs_test_abc",
		UserID:           &user,
		ProductIDs:       "cc-6,hh-12",
		AmountTotalCents: 4800,
		Currency:         "USD",
		PaymentStatus:    "paid",
		CustomerRef:      "cus_123",
	}
	inserted, err := ledger.Record(ctx, in)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = ledger.Record(ctx, in)
	require.NoError(t, err)
	assert.False(t, inserted)

	page, err := ledger.ListForUser(ctx, user, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Empty(t, page.Cursor)
	list := page.Orders
	assert.Equal(t, []string{"cc-6", "hh-12"}, list[0].ProductIDs)
	assert.Equal(t, "48.00", list[0].AmountDisplay)
	assert.Equal(t, "usd", list[0].Currency)
}

func TestLedgerRecordRequiresSessionID(t *testing.T) {
	ledger, err := NewLedger(NewRepository(setupOrdersTestDB(t)))
	require.NoError(t, err)

	_, err = ledger.Record(context.Background(), RecordInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

type failingRepo struct{}

func (failingRepo) Insert(context.Context, *models.Order) (bool, error) {
	return false, errors.New("connection reset")
}

func (failingRepo) ListByUser(context.Context, uuid.UUID, int, *pagination.Cursor) ([]models.Order, *pagination.Cursor, error) {
	return nil, nil, errors.New("connection reset")
}

func TestLedgerSurfacesPersistenceErrors(t *testing.T) {
	ledger, err := NewLedger(failingRepo{})
	require.NoError(t, err)

	_, err = ledger.Record(context.Background(), RecordInput{SessionID: "cs_1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePersistence))

	_, err = ledger.ListForUser(context.Background(), uuid.New(), pagination.Params{Limit: 10})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePersistence))
}

func TestLedgerRejectsMalformedCursor(t *testing.T) {
	ledger, err := NewLedger(failingRepo{})
	require.NoError(t, err)

	_, err = ledger.ListForUser(context.Background(), uuid.New(), pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestLedgerPagesThroughHistory(t *testing.T) {
	ledger, err := NewLedger(NewRepository(setupOrdersTestDB(t)))
	require.NoError(t, err)
	ctx := context.Background()
	user := uuid.New()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"cs_1", "cs_2", "cs_3"} {
		at := base.Add(time.Duration(i) * time.Hour)
		ledger.now = func() time.Time { return at }
		_, err := ledger.Record(ctx, RecordInput{SessionID: id, UserID: &user, AmountTotalCents: 100, Currency: "usd", PaymentStatus: "paid"})
		require.NoError(t, err)
	}

	first, err := ledger.ListForUser(ctx, user, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	assert.Equal(t, "cs_3", first.Orders[0].ID)
	assert.Equal(t, "cs_2", first.Orders[1].ID)
	require.NotEmpty(t, first.Cursor)

	second, err := ledger.ListForUser(ctx, user, pagination.Params{Limit: 2, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Equal(t, "cs_1", second.Orders[0].ID)
	assert.Empty(t, second.Cursor)
}

func TestFromModelSplitsProductIDs(t *testing.T) {
	dto := FromModel(models.Order{ID: "cs_1", ProductIDs: "", AmountTotal: 1200})
	assert.Empty(t, dto.ProductIDs)
	assert.Equal(t, "12.00", dto.AmountDisplay)
}
