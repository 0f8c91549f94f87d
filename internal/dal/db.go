package dal

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	proxymysql "github.com/go-sql-driver/mysql"
	"golang.org/x/net/proxy"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"

	"github.com/utrading/utrading-sol-agent/config"
	"github.com/utrading/utrading-sol-agent/internal/models"
	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// GormLogger forwards gorm's printf output to zerolog.
type GormLogger struct{}

func (GormLogger) Printf(f string, args ...any) {
	l := logger.Component("gorm")
	l.Warn().Msgf(f, args...)
}

var (
	db     *gorm.DB
	dbOnce sync.Once
)

// InitDB opens the configured database once and panics on failure.
func InitDB(cfg config.Database) {
	dbOnce.Do(func() {
		conn, err := Open(cfg)
		if err != nil {
			panic(fmt.Sprintf("connect database failed: %v", err))
		}
		db = conn
	})
}

func DB() *gorm.DB {
	return db
}

func dialector(driver, dsn string) (gorm.Dialector, error) {
	switch strings.ToLower(driver) {
	case DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverPostgres, "postgresql", "pgx":
		return postgres.Open(dsn), nil
	case DriverSQLite, "sqlite3", "":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func registerProxyDialer(proxyAddr string) error {
	dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, &net.Dialer{})
	if err != nil {
		return fmt.Errorf("create proxy dialer: %w", err)
	}

	proxymysql.RegisterDialContext("tcp", func(ctx context.Context, addr string) (net.Conn, error) {
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, "tcp", addr)
		}
		return dialer.Dial("tcp", addr)
	})

	return nil
}

// Open connects without touching the package singleton.
func Open(cfg config.Database) (*gorm.DB, error) {
	if cfg.ProxyEnabled && strings.EqualFold(cfg.Driver, DriverMySQL) {
		if err := registerProxyDialer(cfg.ProxyAddr); err != nil {
			return nil, err
		}
		logger.Info().Str("proxy", cfg.ProxyAddr).Msg("mysql proxy enabled")
	}

	primary, err := dialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	gormLog := gormlogger.New(GormLogger{}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	conn, err := gorm.Open(primary, &gorm.Config{
		Logger:      gormLog,
		PrepareStmt: !strings.EqualFold(cfg.Driver, DriverSQLite) && cfg.Driver != "",
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	maxIdleTime := time.Hour
	if cfg.ConnMaxIdleTime > 0 {
		maxIdleTime = time.Duration(cfg.ConnMaxIdleTime) * time.Second
	}
	maxLifetime := 2 * time.Hour
	if cfg.ConnMaxLifetime > 0 {
		maxLifetime = time.Duration(cfg.ConnMaxLifetime) * time.Second
	}

	if len(cfg.SlaveAddr) > 0 {
		replicas := make([]gorm.Dialector, 0, len(cfg.SlaveAddr))
		for _, addr := range cfg.SlaveAddr {
			d, err := dialector(cfg.Driver, addr)
			if err != nil {
				return nil, err
			}
			replicas = append(replicas, d)
		}
		plugin := dbresolver.Register(dbresolver.Config{Replicas: replicas, TraceResolverMode: true}).
			SetConnMaxIdleTime(maxIdleTime).
			SetConnMaxLifetime(maxLifetime).
			SetMaxIdleConns(cfg.MaxIdleConnections).
			SetMaxOpenConns(cfg.MaxOpenConnections)
		if err = conn.Use(plugin); err != nil {
			return nil, fmt.Errorf("register dbresolver: %w", err)
		}
		logger.Info().Int("replicas", len(replicas)).Msg("database replicas configured")
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if cfg.MaxIdleConnections > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConnections)
	}
	if cfg.MaxOpenConnections > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConnections)
	}
	sqlDB.SetConnMaxIdleTime(maxIdleTime)
	sqlDB.SetConnMaxLifetime(maxLifetime)

	logger.Info().
		Str("driver", cfg.Driver).
		Int("max_idle", cfg.MaxIdleConnections).
		Int("max_open", cfg.MaxOpenConnections).
		Msg("database connected")

	return conn, nil
}

func Close() {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error().Err(err).Msg("get sql.DB failed")
		return
	}
	if err = sqlDB.Close(); err != nil {
		logger.Error().Err(err).Msg("close database failed")
		return
	}
	logger.Info().Msg("database closed")
}

// Models lists every table owned by the agent.
func Models() []any {
	return []any{
		&models.Wallet{},
		&models.Trade{},
		&models.WalletEdge{},
		&models.AgentHealth{},
	}
}

// AutoMigrate migrates every model, logging failures per table. It returns the
// first failure so callers can decide whether to continue.
func AutoMigrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("database not initialized")
	}

	var firstErr error
	for _, model := range Models() {
		if err := conn.AutoMigrate(model); err != nil {
			logger.Warn().Err(err).Str("table", tableName(model)).Msg("auto migrate failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		logger.Debug().Str("table", tableName(model)).Msg("auto migrate ok")
	}
	return firstErr
}

func tableName(model any) string {
	if t, ok := model.(interface{ TableName() string }); ok {
		return t.TableName()
	}
	return "unknown"
}
