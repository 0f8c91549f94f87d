// Package orchestrator runs the discovery, scoring, webhook-sync and health
// loops and handles live trade events. Loops share state only through the
// stores, the Counters and the wallet cache.
package orchestrator

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/utrading/utrading-sol-agent/config"
	"github.com/utrading/utrading-sol-agent/internal/alert"
	"github.com/utrading/utrading-sol-agent/internal/botdetect"
	"github.com/utrading/utrading-sol-agent/internal/cache"
	"github.com/utrading/utrading-sol-agent/internal/dao"
	"github.com/utrading/utrading-sol-agent/internal/discovery"
	"github.com/utrading/utrading-sol-agent/internal/models"
	"github.com/utrading/utrading-sol-agent/internal/monitor"
	"github.com/utrading/utrading-sol-agent/internal/processor"
	"github.com/utrading/utrading-sol-agent/pkg/concurrent"
	"github.com/utrading/utrading-sol-agent/pkg/goplus"
	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

const (
	LoopDiscovery   = "discovery"
	LoopScoring     = "scoring"
	LoopWebhookSync = "webhook_sync"
	LoopHealth      = "health"
)

type WalletStore interface {
	Get(ctx context.Context, address string) (*models.Wallet, error)
	DueForScoring(ctx context.Context, staleBefore time.Time, limit int) ([]*models.Wallet, error)
	Tier1Addresses(ctx context.Context, limit int) ([]string, error)
	SaveScoreWithTrades(ctx context.Context, u dao.ScoreUpdate, trades []*models.Trade) (models.Tier, error)
	TouchScored(ctx context.Context, address string, at time.Time) error
	TouchActive(ctx context.Context, address string, at time.Time) error
	Exile(ctx context.Context, addresses []string, notes string) ([]string, error)
	MarkWebhookRegistered(ctx context.Context, addresses []string) error
	CountByTier(ctx context.Context) (map[models.Tier]int64, error)
	ArchiveInactive(ctx context.Context, before time.Time) (int64, error)
}

type TradeStore interface {
	RecentByWallet(ctx context.Context, since time.Time, limit int) (map[string][]*models.Trade, error)
}

type HealthStore interface {
	Insert(ctx context.Context, h *models.AgentHealth) error
}

// History fetches a wallet's enhanced transactions, newest first.
type History interface {
	GetAllTransactions(ctx context.Context, addr string, max int) ([]gjson.Result, error)
}

type WebhookRegistrar interface {
	CreateWebhook(ctx context.Context, url string, addrs []string) (string, error)
	EditWebhook(ctx context.Context, id, url string, addrs []string) error
}

type Discoverer interface {
	RunCycle(ctx context.Context) (discovery.Result, error)
	Leaderboard(ctx context.Context) (int, error)
}

type TradeWriter interface {
	Add(item processor.BatchItem) error
}

// LiveSyncer follows the tier1 set on a secondary live source.
type LiveSyncer interface {
	Sync(addrs []string) (added, removed int)
}

// Deps are the collaborators. Webhooks, Discovery, Writer and Live may be nil.
type Deps struct {
	Wallets   WalletStore
	Trades    TradeStore
	Health    HealthStore
	History   History
	Webhooks  WebhookRegistrar
	Discovery Discoverer
	Notifier  alert.Notifier
	Writer    TradeWriter
	Live      LiveSyncer
	Funders   *botdetect.FunderBlocklist
}

type Agent struct {
	cfg        config.Agent
	clusterCfg config.Cluster

	wallets   WalletStore
	trades    TradeStore
	health    HealthStore
	history   History
	webhooks  WebhookRegistrar
	discovery Discoverer
	notifier  alert.Notifier
	writer    TradeWriter
	live      LiveSyncer

	detector    *botdetect.Detector
	counters    *Counters
	webhook     *WebhookState
	dedup       *cache.DedupCache
	walletCache *cache.WalletCache

	lastRun   concurrent.Map[string, time.Time]
	startedAt time.Time
	now       func() time.Time
}

func New(cfg *config.Config, deps Deps) *Agent {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = alert.Nop{}
	}
	funders := deps.Funders
	if funders == nil {
		funders = botdetect.NewFunderBlocklist(cfg.Agent.FunderBlocklist...)
	}

	return &Agent{
		cfg:         cfg.Agent,
		clusterCfg:  cfg.Cluster,
		wallets:     deps.Wallets,
		trades:      deps.Trades,
		health:      deps.Health,
		history:     deps.History,
		webhooks:    deps.Webhooks,
		discovery:   deps.Discovery,
		notifier:    notifier,
		writer:      deps.Writer,
		live:        deps.Live,
		detector:    botdetect.NewDetector(cfg.Agent.BotScoreThreshold, funders),
		counters:    NewCounters(),
		webhook:     NewWebhookState(cfg.Agent.WebhookID),
		dedup:       cache.NewDedupCache(cfg.Agent.DedupTTL),
		walletCache: cache.NewWalletCache(deps.Wallets, 30*time.Second),
		startedAt:   time.Now(),
		now:         time.Now,
	}
}

func (a *Agent) Counters() *Counters {
	return a.counters
}

// Dedup exposes the signature cache so startup can warm it.
func (a *Agent) Dedup() *cache.DedupCache {
	return a.dedup
}

// Run starts the four loops and blocks until ctx is done. A failing
// iteration never stops its loop.
func (a *Agent) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.runLoop(ctx, LoopDiscovery, a.cfg.DiscoveryInterval, a.Discover)
		return nil
	})
	g.Go(func() error {
		a.runLoop(ctx, LoopScoring, a.cfg.ScoringInterval, a.ScoreDue)
		return nil
	})
	g.Go(func() error {
		a.runLoop(ctx, LoopWebhookSync, a.cfg.WebhookSyncInterval, func(ctx context.Context) error {
			_, err := a.SyncWebhook(ctx)
			return err
		})
		return nil
	})
	g.Go(func() error {
		a.runLoop(ctx, LoopHealth, a.cfg.HealthInterval, func(ctx context.Context) error {
			_, err := a.CheckHealth(ctx)
			return err
		})
		return nil
	})

	logger.Info().Msg("agent loops started")
	err := g.Wait()
	logger.Info().Msg("agent loops stopped")
	return err
}

// runLoop runs fn now and then every interval after the previous run ends.
func (a *Agent) runLoop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	if interval <= 0 {
		interval = time.Minute
	}
	log := logger.Component(name)
	log.Info().Dur("interval", interval).Msg("loop started")

	for {
		start := time.Now()
		err := goplus.Safe(func() error { return fn(ctx) })
		monitor.ObserveLoop(name, time.Since(start).Seconds())

		switch {
		case ctx.Err() != nil:
			log.Info().Msg("loop stopped")
			return
		case err != nil:
			a.recordError(name)
			log.Error().Err(err).Msg("loop iteration failed")
		default:
			a.lastRun.Store(name, time.Now())
		}

		if goplus.Sleep(ctx, interval) != nil {
			log.Info().Msg("loop stopped")
			return
		}
	}
}

func (a *Agent) recordError(component string) {
	a.counters.RecordError()
	monitor.IncError(component)
}

// Discover runs one crawl cycle plus the leaderboard pull.
func (a *Agent) Discover(ctx context.Context) error {
	if a.discovery == nil {
		return nil
	}

	res, err := a.discovery.RunCycle(ctx)
	for i := 0; i < res.Errors; i++ {
		a.counters.RecordError()
	}
	if err != nil {
		return err
	}

	added, err := a.discovery.Leaderboard(ctx)
	if err != nil {
		a.recordError(LoopDiscovery)
		logger.Warn().Err(err).Msg("leaderboard discovery failed")
	} else if added > 0 {
		logger.Info().Int("added", added).Msg("wallets added from leaderboard")
	}
	return nil
}

// Status feeds the /status endpoint.
func (a *Agent) Status() map[string]any {
	loops := make(map[string]string)
	for name, at := range a.lastRun.All() {
		loops[name] = at.UTC().Format(time.RFC3339)
	}
	id, addrs := a.webhook.Snapshot()

	return map[string]any{
		"started_at":        a.startedAt.UTC().Format(time.RFC3339),
		"counters":          a.counters.Snapshot(),
		"loops_last_ok":     loops,
		"webhook_id":        id,
		"webhook_addresses": len(addrs),
		"dedup":             a.dedup.Stats(),
		"funders_blocked":   a.detector.Funders.Len(),
	}
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isNotFound(err error) bool {
	return errors.Is(err, dao.ErrNotFound)
}
