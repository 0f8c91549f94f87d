package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/utrading/utrading-sol-agent/internal/address"
	"github.com/utrading/utrading-sol-agent/internal/monitor"
	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

// WebhookState is the last registered address set and subscription id.
// Only the webhook-sync loop writes it.
type WebhookState struct {
	mu    sync.RWMutex
	id    string
	addrs []string
}

func NewWebhookState(id string) *WebhookState {
	return &WebhookState{id: id}
}

func (s *WebhookState) Snapshot() (string, []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, append([]string(nil), s.addrs...)
}

func (s *WebhookState) set(id string, addrs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id, s.addrs = id, addrs
}

// SyncWebhook points the live subscription at the current tier1 set. An
// unchanged set makes no upstream call. It reports whether a registration
// was made.
func (a *Agent) SyncWebhook(ctx context.Context) (bool, error) {
	desired, err := a.wallets.Tier1Addresses(ctx, a.cfg.Tier1MaxWallets)
	if err != nil {
		return false, fmt.Errorf("load tier1: %w", err)
	}
	desired = address.Sorted(desired)

	if a.live != nil {
		a.live.Sync(desired)
	}
	if a.webhooks == nil || a.cfg.PublicWebhookURL == "" {
		return false, nil
	}

	id, current := a.webhook.Snapshot()
	if address.SameSet(current, desired) {
		monitor.IncWebhookSync("skip")
		return false, nil
	}

	action := "edit"
	if id == "" {
		action = "create"
		id, err = a.webhooks.CreateWebhook(ctx, a.cfg.PublicWebhookURL, desired)
	} else {
		err = a.webhooks.EditWebhook(ctx, id, a.cfg.PublicWebhookURL, desired)
	}
	if err != nil {
		monitor.IncWebhookSync(action + "_failed")
		return false, fmt.Errorf("%s webhook: %w", action, err)
	}

	a.webhook.set(id, desired)
	monitor.IncWebhookSync(action)
	monitor.SetWebhookAddresses(len(desired))

	added, removed := address.Diff(current, desired)
	logger.Info().
		Str("webhook_id", id).
		Str("action", action).
		Int("addresses", len(desired)).
		Int("added", len(added)).
		Int("removed", len(removed)).
		Msg("webhook synced")

	if err = a.wallets.MarkWebhookRegistered(ctx, desired); err != nil {
		logger.Warn().Err(err).Msg("mark webhook registered failed")
	}
	return true, nil
}
