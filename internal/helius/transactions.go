package helius

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-sol-agent/internal/address"
	"github.com/utrading/utrading-sol-agent/pkg/goplus"
	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

// GetParsedTransactions returns up to limit enhanced transactions for addr,
// newest first, starting before the given signature when set.
func (c *Client) GetParsedTransactions(ctx context.Context, addr string, limit int, before string) ([]gjson.Result, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if before != "" {
		params.Set("before", before)
	}
	data, err := c.do(ctx, "transactions", http.MethodGet, "/addresses/"+addr+"/transactions", params, nil)
	if err != nil {
		return nil, err
	}
	return parseArray("transactions", data)
}

// GetAllTransactions pages backwards through addr's history up to max. A
// failed page ends the walk; what was fetched so far is returned.
func (c *Client) GetAllTransactions(ctx context.Context, addr string, max int) ([]gjson.Result, error) {
	var (
		out    []gjson.Result
		before string
	)
	for len(out) < max {
		page, err := c.GetParsedTransactions(ctx, addr, pageSize, before)
		if err != nil {
			if len(out) == 0 {
				return nil, err
			}
			logger.Warn().Err(err).Str("wallet", address.Short(addr)).Int("fetched", len(out)).Msg("history page failed, keeping partial")
			break
		}
		if len(page) == 0 {
			break
		}
		out = append(out, page...)
		before = page[len(page)-1].Get("signature").String()
		if len(page) < pageSize || before == "" {
			break
		}
		if err = goplus.Sleep(ctx, c.pagePause); err != nil {
			break
		}
	}
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}

// GetTransactions resolves signatures to enhanced transactions.
func (c *Client) GetTransactions(ctx context.Context, signatures []string) ([]gjson.Result, error) {
	if len(signatures) == 0 {
		return nil, nil
	}
	data, err := c.do(ctx, "resolve", http.MethodPost, "/transactions", nil, map[string]any{"transactions": signatures})
	if err != nil {
		return nil, err
	}
	return parseArray("resolve", data)
}
