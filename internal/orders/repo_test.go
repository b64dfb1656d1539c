package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sweetcrumb/storefront/pkg/db/models"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
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
	return conn
}

func TestInsertIgnoresDuplicates(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()

	order := &models.Order{ID: "cs_test_1", AmountTotal: 2400, Currency: "usd", PaymentStatus: "paid", CreatedAt: time.Now()}
	inserted, err := repo.Insert(ctx, order)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := &models.Order{ID: "cs_test_1", AmountTotal: 9999, Currency: "usd", PaymentStatus: "paid", CreatedAt: time.Now()}
	inserted, err = repo.Insert(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	stored, err := repo.FindByID(ctx, "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, int64(2400), stored.AmountTotal, "first write wins")
}

func TestListByUserNewestFirst(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()
	user := uuid.New()
	other := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"cs_a", "cs_b", "cs_c"} {
		_, err := repo.Insert(ctx, &models.Order{
			ID: id, UserID: &user, AmountTotal: 100, Currency: "usd", PaymentStatus: "paid",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	_, err := repo.Insert(ctx, &models.Order{ID: "cs_other", UserID: &other, AmountTotal: 1, Currency: "usd", PaymentStatus: "paid", CreatedAt: base})
	require.NoError(t, err)

	list, next, err := repo.ListByUser(ctx, user, 2, nil)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "cs_c", list[0].ID)
	assert.Equal(t, "cs_b", list[1].ID)
	require.NotNil(t, next)
	assert.Equal(t, "cs_b", next.ID)

	list, next, err = repo.ListByUser(ctx, user, 2, next)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "cs_a", list[0].ID)
	assert.Nil(t, next)
}
