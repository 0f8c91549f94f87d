package helius

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-sol-agent/internal/monitor"
	"github.com/utrading/utrading-sol-agent/pkg/httpx"
	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

// fallbackTxns bounds the mint history scanned when RPC lookup fails.
const fallbackTxns = 100

// TokenHolders returns up to limit wallets associated with mint. It asks RPC
// for the largest token accounts and resolves their owners; when that fails
// or yields nothing it falls back to counterparties in the mint's recent
// transactions. Errors are logged and yield an empty result.
func (c *Client) TokenHolders(ctx context.Context, mint string, limit int) []string {
	owners, err := c.largestOwners(ctx, mint, limit)
	if err != nil {
		logger.Warn().Err(err).Str("mint", mint).Msg("largest accounts lookup failed, falling back")
	}
	if len(owners) > 0 {
		return owners
	}

	owners, err = c.recentCounterparties(ctx, mint, limit)
	if err != nil {
		logger.Warn().Err(err).Str("mint", mint).Msg("holder fallback failed")
		return nil
	}
	return owners
}

func (c *Client) largestOwners(ctx context.Context, mint string, limit int) ([]string, error) {
	key, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, err
	}

	var largest *rpc.GetTokenLargestAccountsResult
	err = httpx.Retry(ctx, c.policy, "getTokenLargestAccounts", func() error {
		var callErr error
		largest, callErr = c.rpc.GetTokenLargestAccounts(ctx, key, rpc.CommitmentConfirmed)
		return callErr
	})
	if err != nil {
		monitor.IncUpstream(service, "largest_accounts", "error")
		return nil, err
	}
	monitor.IncUpstream(service, "largest_accounts", "200")
	if largest == nil || len(largest.Value) == 0 {
		return nil, nil
	}

	accounts := make([]solana.PublicKey, 0, len(largest.Value))
	for _, acc := range largest.Value {
		accounts = append(accounts, acc.Address)
		if len(accounts) == limit {
			break
		}
	}

	var res *rpc.GetMultipleAccountsResult
	err = httpx.Retry(ctx, c.policy, "getMultipleAccounts", func() error {
		var callErr error
		res, callErr = c.rpc.GetMultipleAccountsWithOpts(ctx, accounts, &rpc.GetMultipleAccountsOpts{
			Encoding:   solana.EncodingJSONParsed,
			Commitment: rpc.CommitmentConfirmed,
		})
		return callErr
	})
	if err != nil {
		monitor.IncUpstream(service, "multiple_accounts", "error")
		return nil, err
	}
	monitor.IncUpstream(service, "multiple_accounts", "200")

	seen := make(map[string]bool)
	var owners []string
	for _, acc := range res.Value {
		if acc == nil || acc.Data == nil {
			continue
		}
		owner := gjson.GetBytes(acc.Data.GetRawJSON(), "parsed.info.owner").String()
		if owner == "" || seen[owner] {
			continue
		}
		seen[owner] = true
		owners = append(owners, owner)
	}
	return owners, nil
}

func (c *Client) recentCounterparties(ctx context.Context, mint string, limit int) ([]string, error) {
	txs, err := c.GetParsedTransactions(ctx, mint, fallbackTxns, "")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	add := func(a string) {
		if a == "" || seen[a] || len(out) >= limit {
			return
		}
		seen[a] = true
		out = append(out, a)
	}
	for _, tx := range txs {
		for _, t := range tx.Get("tokenTransfers").Array() {
			if t.Get("mint").String() != mint {
				continue
			}
			add(t.Get("toUserAccount").String())
			add(t.Get("fromUserAccount").String())
		}
	}
	return out, nil
}
