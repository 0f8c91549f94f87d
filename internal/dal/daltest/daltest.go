// Package daltest opens isolated in-memory databases for tests.
package daltest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/utrading/utrading-sol-agent/config"
	"github.com/utrading/utrading-sol-agent/internal/dal"
)

var seq atomic.Int64

// New returns a migrated in-memory SQLite database private to the test.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	db, err := dal.Open(config.Database{
		Driver:             dal.DriverSQLite,
		DSN:                dsn,
		MaxIdleConnections: 1,
		MaxOpenConnections: 1,
	})
	require.NoError(t, err)
	require.NoError(t, dal.AutoMigrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
