package helius

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-sol-agent/config"
	"github.com/utrading/utrading-sol-agent/internal/monitor"
	"github.com/utrading/utrading-sol-agent/pkg/httpx"
)

const (
	pageSize = 100
	service  = "helius"
)

// ErrRateLimited matches a call that kept getting 429 until attempts ran out.
var ErrRateLimited = httpx.ErrRateLimited

// Client talks to the Helius enhanced-transaction API, its webhook API and
// the Solana JSON-RPC endpoint.
type Client struct {
	apiURL    string
	apiKey    string
	http      *http.Client
	policy    httpx.Policy
	rpc       *rpc.Client
	pagePause time.Duration
}

func New(cfg config.Helius) (*Client, error) {
	hc, err := httpx.NewClient(cfg.Timeout, cfg.ProxyAddr)
	if err != nil {
		return nil, err
	}

	rpcURL := cfg.RPCURL
	if cfg.APIKey != "" {
		rpcURL = withAPIKey(rpcURL, cfg.APIKey)
	}
	rpcClient := rpc.NewWithCustomRPCClient(jsonrpc.NewClientWithOpts(rpcURL, &jsonrpc.RPCClientOpts{HTTPClient: hc}))

	return &Client{
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		apiKey: cfg.APIKey,
		http:   hc,
		policy: httpx.Policy{
			MaxAttempts: cfg.MaxAttempts,
			MinBackoff:  cfg.MinBackoff,
			MaxBackoff:  cfg.MaxBackoff,
		},
		rpc:       rpcClient,
		pagePause: cfg.PagePause,
	}, nil
}

func withAPIKey(raw, key string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("api-key", key)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) endpoint(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api-key", c.apiKey)
	return c.apiURL + path + "?" + params.Encode()
}

// do sends one API call and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", op, err)
		}
	}
	target := c.endpoint(path, params)

	resp, err := httpx.Do(ctx, c.http, c.policy, func() (*http.Request, error) {
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, rd)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	})
	if err != nil {
		status := "error"
		var serr *httpx.StatusError
		if errors.As(err, &serr) {
			status = strconv.Itoa(serr.Code)
		}
		monitor.IncUpstream(service, op, status)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		monitor.IncUpstream(service, op, "error")
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	monitor.IncUpstream(service, op, strconv.Itoa(resp.StatusCode))
	return data, nil
}

func parseArray(op string, data []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s: invalid json response", op)
	}
	res := gjson.ParseBytes(data)
	if !res.IsArray() {
		return nil, fmt.Errorf("%s: expected array, got %s", op, res.Type)
	}
	return res.Array(), nil
}
