// Package discovery grows the candidate pool by crawling co-buyers of tokens
// bought by wallets already worth watching.
package discovery

import (
	"context"
	"errors"
	"time"

	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-sol-agent/config"
	"github.com/utrading/utrading-sol-agent/internal/address"
	"github.com/utrading/utrading-sol-agent/internal/birdeye"
	"github.com/utrading/utrading-sol-agent/internal/models"
	"github.com/utrading/utrading-sol-agent/internal/monitor"
	"github.com/utrading/utrading-sol-agent/internal/normalizer"
	"github.com/utrading/utrading-sol-agent/pkg/goplus"
	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

const (
	SourceSeed        = "config_seed"
	SourceLeaderboard = "birdeye_leaderboard"
)

// Fetcher is the upstream data needed to crawl.
type Fetcher interface {
	GetParsedTransactions(ctx context.Context, addr string, limit int, before string) ([]gjson.Result, error)
	TokenHolders(ctx context.Context, mint string, limit int) []string
}

type WalletStore interface {
	EnsureWallet(ctx context.Context, address, source string, now time.Time) (bool, error)
	ActiveRoots(ctx context.Context, limit int) ([]string, error)
}

type EdgeStore interface {
	RecordEdge(ctx context.Context, source, target, token string, blockDelta int, now time.Time) error
}

type Leaderboard interface {
	Enabled() bool
	TopTraders(ctx context.Context) ([]birdeye.Trader, error)
}

// Result summarises one crawl cycle.
type Result struct {
	Roots      int
	Tokens     int
	Discovered int
	Edges      int
	Errors     int
}

type Crawler struct {
	fetch   Fetcher
	wallets WalletStore
	edges   EdgeStore
	board   Leaderboard
	cfg     config.Discovery
	seeds   []string
	now     func() time.Time
}

// NewCrawler builds a crawler; board may be nil.
func NewCrawler(fetch Fetcher, wallets WalletStore, edges EdgeStore, board Leaderboard, cfg config.Discovery, seeds []string) *Crawler {
	valid, rejected := address.Filter(seeds)
	for _, s := range rejected {
		logger.Warn().Str("seed", s).Msg("ignoring invalid seed wallet")
	}
	return &Crawler{
		fetch:   fetch,
		wallets: wallets,
		edges:   edges,
		board:   board,
		cfg:     cfg,
		seeds:   valid,
		now:     time.Now,
	}
}

// SeedWallets inserts the configured seeds as candidates and returns how many were new.
func (c *Crawler) SeedWallets(ctx context.Context) (int, error) {
	var added int
	for _, seed := range c.seeds {
		created, err := c.wallets.EnsureWallet(ctx, seed, SourceSeed, c.now())
		if err != nil {
			return added, err
		}
		if created {
			added++
			monitor.IncDiscovered(SourceSeed)
		}
	}
	if added > 0 {
		logger.Info().Int("added", added).Msg("seed wallets inserted")
	}
	return added, nil
}

// Leaderboard adds the leaderboard's top traders as candidates. A missing
// board or key is not an error.
func (c *Crawler) Leaderboard(ctx context.Context) (int, error) {
	if c.board == nil || !c.board.Enabled() {
		return 0, nil
	}
	traders, err := c.board.TopTraders(ctx)
	if err != nil {
		return 0, err
	}

	var added int
	for _, tr := range traders {
		if !address.Valid(tr.Address) {
			continue
		}
		created, err := c.wallets.EnsureWallet(ctx, tr.Address, SourceLeaderboard, c.now())
		if err != nil {
			return added, err
		}
		if created {
			added++
			monitor.IncDiscovered(SourceLeaderboard)
		}
	}
	return added, nil
}

// roots merges active tier1/tier2 wallets with the seeds, capped at MaxRoots.
func (c *Crawler) roots(ctx context.Context) ([]string, error) {
	active, err := c.wallets.ActiveRoots(ctx, c.cfg.RootCandidates)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(active)+len(c.seeds))
	var out []string
	for _, list := range [][]string{active, c.seeds} {
		for _, a := range list {
			if seen[a] {
				continue
			}
			seen[a] = true
			out = append(out, a)
		}
	}
	if c.cfg.MaxRoots > 0 && len(out) > c.cfg.MaxRoots {
		out = out[:c.cfg.MaxRoots]
	}
	return out, nil
}

// RunCycle performs one crawl pass. Failures on a single root or token are
// logged and skipped; only a failed root query or cancellation ends the cycle.
func (c *Crawler) RunCycle(ctx context.Context) (Result, error) {
	var res Result

	roots, err := c.roots(ctx)
	if err != nil {
		return res, err
	}
	if len(roots) == 0 {
		logger.Warn().Msg("no roots to crawl, configure seed wallets")
		return res, nil
	}
	res.Roots = len(roots)

	seen := make(map[string]bool, len(roots))
	for _, r := range roots {
		seen[r] = true
	}

	for i, root := range roots {
		if err = c.crawlRoot(ctx, root, seen, &res); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return res, err
			}
			res.Errors++
			monitor.IncError("discovery")
			logger.Error().Err(err).Str("root", address.Short(root)).Msg("crawl root failed")
		}
		if i < len(roots)-1 {
			if err = goplus.Sleep(ctx, c.cfg.RootPause); err != nil {
				return res, err
			}
		}
	}

	logger.Info().
		Int("roots", res.Roots).
		Int("tokens", res.Tokens).
		Int("discovered", res.Discovered).
		Int("edges", res.Edges).
		Msg("discovery cycle complete")
	return res, nil
}

func (c *Crawler) crawlRoot(ctx context.Context, root string, seen map[string]bool, res *Result) error {
	txs, err := c.fetch.GetParsedTransactions(ctx, root, c.cfg.RootTxns, "")
	if err != nil {
		return err
	}

	tokens := boughtTokens(normalizer.NormalizeBatch(txs, root), c.cfg.TokensPerRoot)
	for _, token := range tokens {
		res.Tokens++
		for _, holder := range c.fetch.TokenHolders(ctx, token, c.cfg.HoldersPerToken) {
			if holder == root || seen[holder] || !address.Valid(holder) {
				continue
			}
			seen[holder] = true

			created, err := c.wallets.EnsureWallet(ctx, holder, root, c.now())
			if err != nil {
				res.Errors++
				logger.Warn().Err(err).Str("wallet", address.Short(holder)).Msg("insert candidate failed")
				continue
			}
			if created {
				res.Discovered++
				monitor.IncDiscovered("crawl")
				logger.Debug().
					Str("wallet", address.Short(holder)).
					Str("via", address.Short(root)).
					Str("token", address.Short(token)).
					Msg("new candidate")
			}

			if err = c.edges.RecordEdge(ctx, root, holder, token, 0, c.now()); err != nil {
				res.Errors++
				logger.Warn().Err(err).Str("wallet", address.Short(holder)).Msg("record edge failed")
				continue
			}
			res.Edges++
		}
		if err = goplus.Sleep(ctx, c.cfg.TokenPause); err != nil {
			return err
		}
	}
	return nil
}

// boughtTokens lists distinct bought mints in first-seen order, capped at limit.
func boughtTokens(trades []*models.Trade, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range trades {
		if !t.IsBuy() || t.TokenAddress == "" || seen[t.TokenAddress] {
			continue
		}
		seen[t.TokenAddress] = true
		out = append(out, t.TokenAddress)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
