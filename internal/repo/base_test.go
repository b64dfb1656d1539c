package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type ctxKey struct{}

func TestBaseBindsContext(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	base := NewBase(conn)

	assert.Same(t, conn, base.DB(nil))

	ctx := context.WithValue(context.Background(), ctxKey{}, "orders")
	bound := base.DB(ctx)
	require.NotNil(t, bound.Statement)
	assert.Equal(t, "orders", bound.Statement.Context.Value(ctxKey{}))
}
