// Package birdeye reads the public trader leaderboard used as a discovery source.
package birdeye

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-sol-agent/config"
	"github.com/utrading/utrading-sol-agent/internal/monitor"
	"github.com/utrading/utrading-sol-agent/pkg/httpx"
)

const (
	service = "birdeye"
	timeout = 20 * time.Second
)

var ErrNoAPIKey = errors.New("birdeye: api key not configured")

// Trader is one leaderboard row. PnL and Volume are best-effort numbers; the
// API has returned them both as strings and as numbers.
type Trader struct {
	Address    string
	PnL        float64
	Volume     float64
	TradeCount int
}

type Client struct {
	apiURL string
	apiKey string
	limit  int
	http   *http.Client
	policy httpx.Policy
}

func New(cfg config.Birdeye) *Client {
	limit := cfg.Limit
	if limit <= 0 {
		limit = 50
	}
	return &Client{
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		apiKey: cfg.APIKey,
		limit:  limit,
		http:   &http.Client{Timeout: timeout},
		policy: httpx.Policy{MaxAttempts: 2, MinBackoff: time.Second, MaxBackoff: 2 * time.Second},
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// TopTraders returns the weekly top traders by PnL.
func (c *Client) TopTraders(ctx context.Context) ([]Trader, error) {
	if !c.Enabled() {
		return nil, ErrNoAPIKey
	}

	params := url.Values{}
	params.Set("type", "1W")
	params.Set("sort_by", "PnL")
	params.Set("sort_type", "desc")
	params.Set("limit", strconv.Itoa(c.limit))
	target := c.apiURL + "/trader/gainers-losers?" + params.Encode()

	resp, err := httpx.Do(ctx, c.http, c.policy, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-API-KEY", c.apiKey)
		req.Header.Set("x-chain", "solana")
		return req, nil
	})
	if err != nil {
		monitor.IncUpstream(service, "top_traders", "error")
		return nil, fmt.Errorf("top traders: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		monitor.IncUpstream(service, "top_traders", "error")
		return nil, fmt.Errorf("top traders: read body: %w", err)
	}
	monitor.IncUpstream(service, "top_traders", strconv.Itoa(resp.StatusCode))

	return parseTraders(body)
}

func parseTraders(body []byte) ([]Trader, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("top traders: invalid json response")
	}
	root := gjson.ParseBytes(body)
	if ok := root.Get("success"); ok.Exists() && !ok.Bool() {
		return nil, fmt.Errorf("top traders: %s", root.Get("message").String())
	}

	var out []Trader
	for _, item := range root.Get("data.items").Array() {
		addr := item.Get("address").String()
		if addr == "" {
			continue
		}
		out = append(out, Trader{
			Address:    addr,
			PnL:        cast.ToFloat64(item.Get("pnl").Value()),
			Volume:     cast.ToFloat64(item.Get("volume").Value()),
			TradeCount: cast.ToInt(item.Get("trade_count").Value()),
		})
	}
	return out, nil
}
