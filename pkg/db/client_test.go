package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sweetcrumb/storefront/pkg/config"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return conn
}

func TestFromConnPingAndClose(t *testing.T) {
	conn := openSQLite(t)
	c := FromConn(conn)
	assert.Same(t, conn, c.DB())
	require.NoError(t, c.Ping(context.Background()))

	require.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}

func TestConfigurePoolAppliesLimits(t *testing.T) {
	c := FromConn(openSQLite(t))
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.configurePool(config.DBConfig{MaxOpenConns: 3, MaxIdleConns: 1}))
	sqlDB, err := c.conn.DB()
	require.NoError(t, err)
	assert.Equal(t, 3, sqlDB.Stats().MaxOpenConnections)
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{}, nil)
	assert.ErrorContains(t, err, "DSN is required")
}
