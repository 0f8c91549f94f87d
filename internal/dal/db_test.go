package dal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-sol-agent/config"
	"github.com/utrading/utrading-sol-agent/internal/dal"
	"github.com/utrading/utrading-sol-agent/internal/dal/daltest"
)

func TestAutoMigrateCreatesTables(t *testing.T) {
	db := daltest.New(t)

	for _, table := range []string{"wallets", "trades", "wallet_edges", "agent_health"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex("trades", "uidx_trade_signature"))
	assert.True(t, db.Migrator().HasIndex("wallet_edges", "uidx_edge_pair"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := dal.Open(config.Database{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestAutoMigrateNilDB(t *testing.T) {
	assert.Error(t, dal.AutoMigrate(nil))
}

func TestGormLoggerPrintf(t *testing.T) {
	assert.NotPanics(t, func() {
		dal.GormLogger{}.Printf("slow sql >= %s: %s", "200ms", "SELECT 1")
	})
}
