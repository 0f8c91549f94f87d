package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-sol-agent/config"
	"github.com/utrading/utrading-sol-agent/internal/monitor"
	"github.com/utrading/utrading-sol-agent/pkg/httpx"
)

var ErrTelegramDisabled = errors.New("telegram: bot token or chat id missing")

// defaultRetryAfter applies when a 429 carries no parameters.retry_after.
const defaultRetryAfter = 5 * time.Second

// Telegram sends HTML messages to one chat through the Bot API.
type Telegram struct {
	apiURL   string
	token    string
	chatID   string
	tier1Max int
	http     *http.Client
	policy   httpx.Policy
	now      func() time.Time
}

func NewTelegram(cfg config.Telegram, tier1Max int) *Telegram {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Telegram{
		apiURL:   strings.TrimRight(cfg.APIURL, "/"),
		token:    cfg.BotToken,
		chatID:   cfg.ChatID,
		tier1Max: tier1Max,
		http:     &http.Client{Timeout: timeout},
		policy: httpx.Policy{
			MaxAttempts: cfg.MaxAttempts,
			MinBackoff:  time.Second,
			MaxBackoff:  4 * time.Second,
			RetryAfter:  bodyRetryAfter,
		},
		now: time.Now,
	}
}

// bodyRetryAfter reads the Bot API's parameters.retry_after, in seconds.
func bodyRetryAfter(resp *http.Response, body []byte) time.Duration {
	if v := gjson.GetBytes(body, "parameters.retry_after"); v.Exists() && v.Int() > 0 {
		return time.Duration(v.Int()) * time.Second
	}
	if d := httpx.HeaderRetryAfter(resp, body); d > 0 {
		return d
	}
	return defaultRetryAfter
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Enabled() bool {
	return t != nil && t.token != "" && t.chatID != ""
}

func (t *Telegram) send(ctx context.Context, kind, text string) error {
	if !t.Enabled() {
		return ErrTelegramDisabled
	}

	payload, err := json.Marshal(map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return err
	}

	target := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	resp, err := httpx.Do(ctx, t.http, t.policy, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		monitor.IncAlert(kind, false)
		// the request URL embeds the token
		return fmt.Errorf("telegram %s: %w", kind, redact(err, t.token))
	}
	resp.Body.Close()
	monitor.IncAlert(kind, true)
	return nil
}

func redact(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<token>"))
}

func (t *Telegram) NotifyTrade(ctx context.Context, a TradeAlert) error {
	return t.send(ctx, KindTrade, FormatTrade(a, t.now()))
}

func (t *Telegram) NotifyTierChange(ctx context.Context, c TierChange) error {
	return t.send(ctx, KindTier, FormatTierChange(c))
}

func (t *Telegram) NotifyExile(ctx context.Context, e Exile) error {
	return t.send(ctx, KindExile, FormatExile(e))
}

func (t *Telegram) NotifyHeartbeat(ctx context.Context, h Heartbeat) error {
	if h.Tier1Max == 0 {
		h.Tier1Max = t.tier1Max
	}
	return t.send(ctx, KindHeartbeat, FormatHeartbeat(h))
}
