package config

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"

	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

type Agent struct {
	MinWinRate          float64       `toml:"min_win_rate"`
	MinTrades           int           `toml:"min_trades"`
	BotScoreThreshold   float64       `toml:"bot_score_threshold"`
	Tier1MaxWallets     int           `toml:"tier1_max_wallets"`
	Tier2MaxWallets     int           `toml:"tier2_max_wallets"`
	DiscoveryInterval   time.Duration `toml:"discovery_interval"`
	RescoreInterval     time.Duration `toml:"rescore_interval"`
	ScoringInterval     time.Duration `toml:"scoring_interval"`
	WebhookSyncInterval time.Duration `toml:"webhook_sync_interval"`
	HealthInterval      time.Duration `toml:"health_interval"`
	PruneInactiveDays   int           `toml:"prune_inactive_days"`
	ScoreBatchSize      int           `toml:"score_batch_size"`
	ScoreConcurrency    int           `toml:"score_concurrency"`
	ScorePause          time.Duration `toml:"score_pause"`
	MaxHistoryTxns      int           `toml:"max_history_txns"`
	SeedWallets         []string      `toml:"seed_wallets"`
	PublicWebhookURL    string        `toml:"public_webhook_url"`
	WebhookID           string        `toml:"webhook_id"`
	FunderBlocklist     []string      `toml:"funder_blocklist"`
	LivePoolSize        int           `toml:"live_pool_size"`
	DedupTTL            time.Duration `toml:"dedup_ttl"`
}

type Discovery struct {
	RootCandidates  int           `toml:"root_candidates"`
	MaxRoots        int           `toml:"max_roots"`
	RootTxns        int           `toml:"root_txns"`
	TokensPerRoot   int           `toml:"tokens_per_root"`
	HoldersPerToken int           `toml:"holders_per_token"`
	TokenPause      time.Duration `toml:"token_pause"`
	RootPause       time.Duration `toml:"root_pause"`
}

type Cluster struct {
	BlockDelta       int           `toml:"block_delta"`
	BlockTime        time.Duration `toml:"block_time"`
	MinCoOccurrences int           `toml:"min_co_occurrences"`
	Lookback         time.Duration `toml:"lookback"`
	TradeLimit       int           `toml:"trade_limit"`
}

type Retention struct {
	Interval   time.Duration `toml:"interval"`
	HealthDays int           `toml:"health_days"`
}

type Server struct {
	Addr          string `toml:"addr"`
	WebhookSecret string `toml:"webhook_secret"`
}

type Helius struct {
	APIKey      string        `toml:"api_key"`
	APIURL      string        `toml:"api_url"`
	RPCURL      string        `toml:"rpc_url"`
	WSURL       string        `toml:"ws_url"`
	MaxAttempts int           `toml:"max_attempts"`
	MinBackoff  time.Duration `toml:"min_backoff"`
	MaxBackoff  time.Duration `toml:"max_backoff"`
	Timeout     time.Duration `toml:"timeout"`
	PagePause   time.Duration `toml:"page_pause"`
	ProxyAddr   string        `toml:"proxy_addr"`
}

type Birdeye struct {
	APIKey string `toml:"api_key"`
	APIURL string `toml:"api_url"`
	Limit  int    `toml:"limit"`
}

type Telegram struct {
	BotToken    string        `toml:"bot_token"`
	ChatID      string        `toml:"chat_id"`
	APIURL      string        `toml:"api_url"`
	MaxAttempts int           `toml:"max_attempts"`
	Timeout     time.Duration `toml:"timeout"`
}

type NATS struct {
	Endpoint string `toml:"endpoint"`
	Subject  string `toml:"subject"`
}

type Database struct {
	Driver             string   `toml:"driver"`
	DSN                string   `toml:"dsn"`
	SlaveAddr          []string `toml:"slave_addr"`
	MaxIdleConnections int      `toml:"max_idle_connections"`
	MaxOpenConnections int      `toml:"max_open_connections"`
	ConnMaxLifetime    int      `toml:"conn_max_lifetime"`
	ConnMaxIdleTime    int      `toml:"conn_max_idle_time"`
	ProxyEnabled       bool     `toml:"proxy_enabled"`
	ProxyAddr          string   `toml:"proxy_addr"`
}

type Stream struct {
	Enabled bool `toml:"enabled"`
}

type Logger struct {
	Level      string `toml:"level"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
	MaxAge     int    `toml:"max_age"`
	Compress   bool   `toml:"compress"`
	Console    bool   `toml:"console"`
	JSON       bool   `toml:"json"`
}

type Config struct {
	Agent     Agent     `toml:"agent"`
	Discovery Discovery `toml:"discovery"`
	Cluster   Cluster   `toml:"cluster"`
	Retention Retention `toml:"retention"`
	Server    Server    `toml:"server"`
	Helius    Helius    `toml:"helius"`
	Birdeye   Birdeye   `toml:"birdeye"`
	Telegram  Telegram  `toml:"telegram"`
	NATS      NATS      `toml:"nats"`
	Database  Database  `toml:"database"`
	Stream    Stream    `toml:"stream"`
	Logger    Logger    `toml:"log"`
}

var (
	cfg         *Config
	cfgPath     string
	cfgLock     sync.RWMutex
	lastModTime time.Time
	stopChan    chan struct{}
)

func Default() *Config {
	return &Config{
		Agent: Agent{
			MinWinRate:          0.30,
			MinTrades:           50,
			BotScoreThreshold:   0.55,
			Tier1MaxWallets:     200,
			Tier2MaxWallets:     1000,
			DiscoveryInterval:   300 * time.Second,
			RescoreInterval:     3600 * time.Second,
			ScoringInterval:     60 * time.Second,
			WebhookSyncInterval: 300 * time.Second,
			HealthInterval:      time.Hour,
			PruneInactiveDays:   30,
			ScoreBatchSize:      50,
			ScoreConcurrency:    1,
			ScorePause:          300 * time.Millisecond,
			MaxHistoryTxns:      500,
			LivePoolSize:        64,
			DedupTTL:            10 * time.Minute,
		},
		Discovery: Discovery{
			RootCandidates:  50,
			MaxRoots:        20,
			RootTxns:        50,
			TokensPerRoot:   10,
			HoldersPerToken: 30,
			TokenPause:      100 * time.Millisecond,
			RootPause:       500 * time.Millisecond,
		},
		Cluster: Cluster{
			BlockDelta:       5,
			BlockTime:        400 * time.Millisecond,
			MinCoOccurrences: 3,
			Lookback:         24 * time.Hour,
			TradeLimit:       10000,
		},
		Retention: Retention{
			Interval:   time.Hour,
			HealthDays: 30,
		},
		Server: Server{
			Addr: "0.0.0.0:8080",
		},
		Helius: Helius{
			APIURL:      "https://api.helius.xyz/v0",
			RPCURL:      "https://mainnet.helius-rpc.com",
			WSURL:       "wss://mainnet.helius-rpc.com",
			MaxAttempts: 4,
			MinBackoff:  time.Second,
			MaxBackoff:  10 * time.Second,
			Timeout:     30 * time.Second,
			PagePause:   200 * time.Millisecond,
		},
		Birdeye: Birdeye{
			APIURL: "https://public-api.birdeye.so/v1",
			Limit:  50,
		},
		Telegram: Telegram{
			APIURL:      "https://api.telegram.org",
			MaxAttempts: 3,
			Timeout:     15 * time.Second,
		},
		NATS: NATS{
			Subject: "sol_agent.alerts",
		},
		Database: Database{
			Driver:             "sqlite",
			DSN:                "sol_agent.db",
			MaxIdleConnections: 16,
			MaxOpenConnections: 64,
			ConnMaxLifetime:    7200,
			ConnMaxIdleTime:    3600,
			ProxyAddr:          "127.0.0.1:7890",
		},
		Logger: Logger{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 60,
			MaxAge:     7,
		},
	}
}

// LoadEnv reads a dotenv file into the process environment. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Load decodes path over the defaults and applies environment overrides.
// An empty path or a missing file yields defaults plus environment.
func Load(path string) error {
	c := Default()
	var modTime time.Time

	if path != "" {
		info, err := os.Stat(path)
		switch {
		case err == nil:
			if _, err = toml.DecodeFile(path, c); err != nil {
				return err
			}
			modTime = info.ModTime()
		case errors.Is(err, os.ErrNotExist):
			logger.Warn().Str("path", path).Msg("config file not found, using defaults")
		default:
			return err
		}
	}

	ApplyEnv(c)

	cfgLock.Lock()
	defer cfgLock.Unlock()
	cfg = c
	cfgPath = path
	lastModTime = modTime

	return nil
}

func Get() *Config {
	cfgLock.RLock()
	defer cfgLock.RUnlock()
	if cfg == nil {
		return Default()
	}
	return cfg
}

// Init loads the config and polls the file for changes every 10s.
func Init(path string) error {
	return InitWithInterval(path, 10*time.Second)
}

func InitWithInterval(path string, interval time.Duration) error {
	if err := Load(path); err != nil {
		return err
	}

	stopChan = make(chan struct{})
	done := stopChan
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				reloadIfNeeded()
			case <-done:
				return
			}
		}
	}()

	return nil
}

func Stop() {
	if stopChan != nil {
		close(stopChan)
		stopChan = nil
	}
}

func reloadIfNeeded() {
	cfgLock.RLock()
	path := cfgPath
	lastMod := lastModTime
	cfgLock.RUnlock()

	if path == "" {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		return
	}

	if info.ModTime().After(lastMod) {
		if err = Load(path); err != nil {
			logger.Error().Err(err).Msg("config reload failed")
		} else {
			logger.Info().Msg("config reloaded")
		}
	}
}

// ApplyEnv overrides secrets and the most commonly tuned thresholds from the environment.
func ApplyEnv(c *Config) {
	envStr("HELIUS_API_KEY", &c.Helius.APIKey)
	envStr("HELIUS_WEBHOOK_SECRET", &c.Server.WebhookSecret)
	envStr("BIRDEYE_API_KEY", &c.Birdeye.APIKey)
	envStr("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	envStr("TELEGRAM_CHAT_ID", &c.Telegram.ChatID)
	envStr("DATABASE_DRIVER", &c.Database.Driver)
	envStr("DATABASE_URL", &c.Database.DSN)
	envStr("NATS_URL", &c.NATS.Endpoint)
	envStr("PUBLIC_WEBHOOK_URL", &c.Agent.PublicWebhookURL)
	envStr("HELIUS_WEBHOOK_ID", &c.Agent.WebhookID)
	envStr("LOG_LEVEL", &c.Logger.Level)

	envFloat("MIN_WIN_RATE", &c.Agent.MinWinRate)
	envFloat("BOT_SCORE_THRESHOLD", &c.Agent.BotScoreThreshold)
	envInt("MIN_TRADES", &c.Agent.MinTrades)
	envInt("TIER1_MAX_WALLETS", &c.Agent.Tier1MaxWallets)
	envInt("TIER2_MAX_WALLETS", &c.Agent.Tier2MaxWallets)
	envInt("PRUNE_INACTIVE_DAYS", &c.Agent.PruneInactiveDays)

	if v, ok := os.LookupEnv("DISCOVERY_INTERVAL_SECS"); ok {
		if n, err := cast.ToInt64E(v); err == nil && n > 0 {
			c.Agent.DiscoveryInterval = time.Duration(n) * time.Second
		}
	}
	if v, ok := os.LookupEnv("RESCORE_INTERVAL_SECS"); ok {
		if n, err := cast.ToInt64E(v); err == nil && n > 0 {
			c.Agent.RescoreInterval = time.Duration(n) * time.Second
		}
	}
	if v, ok := os.LookupEnv("WEBHOOK_SERVER_PORT"); ok {
		if port, err := cast.ToIntE(v); err == nil && port > 0 {
			c.Server.Addr = "0.0.0.0:" + cast.ToString(port)
		}
	}
	if v, ok := os.LookupEnv("SEED_WALLETS"); ok {
		c.Agent.SeedWallets = splitTrim(v)
	}
	if v, ok := os.LookupEnv("FUNDER_BLOCKLIST"); ok {
		c.Agent.FunderBlocklist = splitTrim(v)
	}
}

func envStr(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envFloat(key string, dst *float64) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := cast.ToFloat64E(v); err == nil {
			*dst = f
		}
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := cast.ToIntE(v); err == nil {
			*dst = n
		}
	}
}

func splitTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
