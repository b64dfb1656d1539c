package profiles

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sweetcrumb/storefront/pkg/db/models"
)

func setupProfilesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, conn.Exec(`
CREATE TABLE profiles (
  id TEXT PRIMARY KEY,
  full_name TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  address_line1 TEXT NOT NULL DEFAULT '',
  address_line2 TEXT NOT NULL DEFAULT '',
  city TEXT NOT NULL DEFAULT '',
  state TEXT NOT NULL DEFAULT '',
  postal_code TEXT NOT NULL DEFAULT '',
  stripe_customer_id TEXT,
  updated_at DATETIME
);`).Error)
	return conn
}

func TestFindByIDMissingReturnsNil(t *testing.T) {
	repo := NewRepository(setupProfilesTestDB(t))
	profile, err := repo.FindByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestUpsertDetailsInsertsThenReplaces(t *testing.T) {
	repo := NewRepository(setupProfilesTestDB(t))
	ctx := context.Background()
	id := uuid.New()

	stored, err := repo.UpsertDetails(ctx, &models.Profile{ID: id, FullName: "Marilyn", City: "Austin"})
	require.NoError(t, err)
	assert.Equal(t, "Marilyn", stored.FullName)
	assert.Equal(t, "Austin", stored.City)

	stored, err = repo.UpsertDetails(ctx, &models.Profile{ID: id, FullName: "Marilyn B"})
	require.NoError(t, err)
	assert.Equal(t, "Marilyn B", stored.FullName)
	assert.Equal(t, "", stored.City, "fields are replaced as a unit")
}

func TestUpsertDetailsKeepsStripeCustomer(t *testing.T) {
	repo := NewRepository(setupProfilesTestDB(t))
	ctx := context.Background()
	id := uuid.New()

	_, err := repo.EnsureExists(ctx, id, "")
	require.NoError(t, err)
	won, err := repo.SetStripeCustomerIfAbsent(ctx, id, "cus_1")
	require.NoError(t, err)
	require.True(t, won)

	other := "cus_evil"
	stored, err := repo.UpsertDetails(ctx, &models.Profile{ID: id, Phone: "555", StripeCustomerID: &other})
	require.NoError(t, err)
	require.NotNil(t, stored.StripeCustomerID)
	assert.Equal(t, "cus_1", *stored.StripeCustomerID)
	assert.Equal(t, "555", stored.Phone)
}

func TestEnsureExistsIsIdempotent(t *testing.T) {
	repo := NewRepository(setupProfilesTestDB(t))
	ctx := context.Background()
	id := uuid.New()

	first, err := repo.EnsureExists(ctx, id, "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Ada", first.FullName)
	assert.Nil(t, first.StripeCustomerID)

	second, err := repo.EnsureExists(ctx, id, "Someone Else")
	require.NoError(t, err)
	assert.Equal(t, "Ada", second.FullName)
}

func TestSetStripeCustomerIfAbsentOnlyFirstWins(t *testing.T) {
	repo := NewRepository(setupProfilesTestDB(t))
	ctx := context.Background()
	id := uuid.New()
	_, err := repo.EnsureExists(ctx, id, "")
	require.NoError(t, err)

	won, err := repo.SetStripeCustomerIfAbsent(ctx, id, "cus_a")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.SetStripeCustomerIfAbsent(ctx, id, "cus_b")
	require.NoError(t, err)
	assert.False(t, won)

	stored, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "cus_a", *stored.StripeCustomerID)

	won, err = repo.SetStripeCustomerIfAbsent(ctx, uuid.New(), "cus_c")
	require.NoError(t, err)
	assert.False(t, won, "no row for unknown profile")
}
