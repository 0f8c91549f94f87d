package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-sol-agent/internal/models"
)

const (
	wallet = "Wa11et1111111111111111111111111111111111111"
	pool   = "Poo11111111111111111111111111111111111111111"
	bonk   = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	wif    = "EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm"
)

func parse(t *testing.T, s string) gjson.Result {
	t.Helper()
	require.True(t, gjson.Valid(s), "fixture must be valid json")
	return gjson.Parse(s)
}

func TestTransferBuyFromNativeDelta(t *testing.T) {
	tx := parse(t, `{
		"signature": "sig-buy",
		"timestamp": 1700000000,
		"tokenTransfers": [
			{"mint": "`+bonk+`", "fromUserAccount": "`+pool+`", "toUserAccount": "`+wallet+`", "tokenAmount": 1500, "symbol": "BONK"}
		],
		"accountData": [
			{"account": "`+pool+`", "nativeBalanceChange": 2000000000},
			{"account": "`+wallet+`", "nativeBalanceChange": -2000000000}
		]
	}`)

	tr, ok := Normalize(tx, wallet)
	require.True(t, ok)
	assert.Equal(t, "sig-buy", tr.Signature)
	assert.Equal(t, models.SideBuy, tr.Side)
	assert.Equal(t, bonk, tr.TokenAddress)
	assert.Equal(t, "BONK", tr.TokenSymbol)
	assert.InDelta(t, 2.0, tr.AmountSOL, 1e-9)
	assert.InDelta(t, 300.0, tr.AmountUSD, 1e-9)
	assert.InDelta(t, 0.2, tr.PriceUSD, 1e-9)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), tr.BlockTime)
	assert.False(t, tr.UsedJito)
}

func TestTransferSellPaidInStable(t *testing.T) {
	tx := parse(t, `{
		"signature": "sig-sell",
		"timestamp": 1700000100,
		"source": "JITO_BUNDLE",
		"tokenTransfers": [
			{"mint": "`+wif+`", "fromUserAccount": "`+wallet+`", "toUserAccount": "`+pool+`", "tokenAmount": 10},
			{"mint": "`+USDCMint+`", "fromUserAccount": "`+pool+`", "toUserAccount": "`+wallet+`", "tokenAmount": 300}
		],
		"accountData": [{"account": "`+wallet+`", "nativeBalanceChange": -5000}]
	}`)

	tr, ok := Normalize(tx, wallet)
	require.True(t, ok)
	assert.Equal(t, models.SideSell, tr.Side)
	assert.Equal(t, wif, tr.TokenAddress)
	assert.Equal(t, wif[:8], tr.TokenSymbol)
	assert.InDelta(t, 2.0, tr.AmountSOL, 1e-9)
	assert.InDelta(t, 30.0, tr.PriceUSD, 1e-9)
	assert.True(t, tr.UsedJito)
}

func TestTransferKeepsFirstNonBaseMint(t *testing.T) {
	tx := parse(t, `{
		"signature": "multi",
		"timestamp": 1,
		"tokenTransfers": [
			{"mint": "`+SOLMint+`", "fromUserAccount": "`+pool+`", "toUserAccount": "`+wallet+`", "tokenAmount": 1},
			{"mint": "`+wif+`", "fromUserAccount": "`+pool+`", "toUserAccount": "`+wallet+`", "tokenAmount": 1},
			{"mint": "`+bonk+`", "fromUserAccount": "`+pool+`", "toUserAccount": "`+wallet+`", "tokenAmount": 1}
		]
	}`)

	tr, ok := Normalize(tx, wallet)
	require.True(t, ok)
	assert.Equal(t, wif, tr.TokenAddress)
	assert.Zero(t, tr.AmountSOL)
	assert.Zero(t, tr.PriceUSD)
}

func TestBaseOnlyTransfersFallThroughToSwapEvent(t *testing.T) {
	tx := parse(t, `{
		"signature": "sig-swap",
		"timestamp": 1700000000,
		"tokenTransfers": [
			{"mint": "`+USDCMint+`", "fromUserAccount": "`+wallet+`", "toUserAccount": "`+pool+`", "tokenAmount": 5}
		],
		"events": {"swap": {
			"nativeInput": {"account": "`+wallet+`", "amount": "1000000000"},
			"tokenOutputs": [{"mint": "`+bonk+`", "symbol": "BONK", "rawTokenAmount": {"tokenAmount": "300", "decimals": 0}}]
		}}
	}`)

	tr, ok := Normalize(tx, wallet)
	require.True(t, ok)
	assert.Equal(t, models.SideBuy, tr.Side)
	assert.Equal(t, bonk, tr.TokenAddress)
	assert.InDelta(t, 1.0, tr.AmountSOL, 1e-9)
	assert.InDelta(t, 0.5, tr.PriceUSD, 1e-9)
}

func TestSwapEventShapes(t *testing.T) {
	cases := []struct {
		name string
		swap string
		ok   bool
		side models.Side
		mint string
		sol  float64
	}{
		{
			name: "sell for native",
			swap: `{"tokenInputs": [{"mint": "` + wif + `", "rawTokenAmount": {"tokenAmount": "0"}}], "nativeOutput": {"amount": 3000000000}}`,
			ok:   true, side: models.SideSell, mint: wif, sol: 3,
		},
		{
			name: "buy with usdc",
			swap: `{"tokenInputs": [{"mint": "` + USDCMint + `", "rawTokenAmount": {"tokenAmount": "150000000", "decimals": 6}}],
				"tokenOutputs": [{"mint": "` + bonk + `", "rawTokenAmount": {"tokenAmount": "10", "decimals": 0}}]}`,
			ok: true, side: models.SideBuy, mint: bonk, sol: 1,
		},
		{
			name: "sell for wrapped sol",
			swap: `{"tokenInputs": [{"mint": "` + bonk + `", "rawTokenAmount": {"tokenAmount": "10"}}],
				"tokenOutputs": [{"mint": "` + SOLMint + `", "rawTokenAmount": {"tokenAmount": "2500000000", "decimals": 9}}]}`,
			ok: true, side: models.SideSell, mint: bonk, sol: 2.5,
		},
		{
			name: "token for token",
			swap: `{"tokenInputs": [{"mint": "` + bonk + `"}], "tokenOutputs": [{"mint": "` + wif + `"}]}`,
		},
		{
			name: "empty",
			swap: `{}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := parse(t, `{"signature": "s", "timestamp": 5, "events": {"swap": `+tc.swap+`}}`)
			tr, ok := Normalize(tx, wallet)
			require.Equal(t, tc.ok, ok)
			if !tc.ok {
				return
			}
			assert.Equal(t, tc.side, tr.Side)
			assert.Equal(t, tc.mint, tr.TokenAddress)
			assert.InDelta(t, tc.sol, tr.AmountSOL, 1e-9)
			assert.InDelta(t, tc.sol*USDPerSOL, tr.AmountUSD, 1e-9)
		})
	}
}

func TestMalformedInputIsNonMatch(t *testing.T) {
	n := New()
	for _, raw := range []string{``, `not json`, `[]`, `{"timestamp": 1}`, `{"signature": "x"}`, `{"signature": "x", "tokenTransfers": "nope"}`} {
		_, ok := n.NormalizeBytes([]byte(raw), wallet)
		assert.False(t, ok, raw)
	}

	_, ok := Normalize(parse(t, `{"signature": "x", "events": {"swap": {"nativeInput": {"amount": 1}, "tokenOutputs": []}}}`), wallet)
	assert.False(t, ok)
}

func TestZeroTimestampUsesNow(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n := New()
	n.now = func() time.Time { return fixed }

	tr, ok := n.Normalize(parse(t, `{"signature": "s", "events": {"swap": {
		"nativeInput": {"amount": 1000000000},
		"tokenOutputs": [{"mint": "`+bonk+`"}]}}}`), wallet)
	require.True(t, ok)
	assert.Equal(t, fixed, tr.BlockTime)
}

func TestNormalizeBatchKeepsOrder(t *testing.T) {
	raw := `[
		{"signature": "a", "timestamp": 3, "events": {"swap": {"nativeInput": {"amount": 1}, "tokenOutputs": [{"mint": "` + bonk + `"}]}}},
		{"signature": "junk"},
		{"signature": "b", "timestamp": 1, "events": {"swap": {"tokenInputs": [{"mint": "` + bonk + `"}], "nativeOutput": {"amount": 1}}}}
	]`
	trades := NormalizeBatch(parse(t, raw).Array(), wallet)
	require.Len(t, trades, 2)
	assert.Equal(t, "a", trades[0].Signature)
	assert.Equal(t, "b", trades[1].Signature)
}

func TestWalletFromEvent(t *testing.T) {
	tx := parse(t, `{"accountData": [
		{"account": "fee", "nativeBalanceChange": 0},
		{"account": "`+wallet+`", "nativeBalanceChange": -10},
		{"account": "`+pool+`", "nativeBalanceChange": 10}
	]}`)
	assert.Equal(t, wallet, WalletFromEvent(tx))
	assert.Empty(t, WalletFromEvent(parse(t, `{}`)))
}

func TestIsBase(t *testing.T) {
	for _, m := range []string{"", SOLMint, USDCMint, USDTMint} {
		assert.True(t, IsBase(m))
	}
	assert.False(t, IsBase(bonk))
}

func TestFunderPicksOldestIncomingTransfer(t *testing.T) {
	txs := gjson.Parse(`[
		{"timestamp": 300, "nativeTransfers": [{"fromUserAccount": "` + pool + `", "toUserAccount": "` + wallet + `", "amount": 5}]},
		{"timestamp": 100, "nativeTransfers": [
			{"fromUserAccount": "` + wallet + `", "toUserAccount": "` + pool + `", "amount": 9},
			{"fromUserAccount": "` + bonk + `", "toUserAccount": "` + wallet + `", "amount": 1000000000}
		]},
		{"timestamp": 50, "nativeTransfers": [{"fromUserAccount": "` + wif + `", "toUserAccount": "` + wallet + `", "amount": 0}]}
	]`).Array()

	assert.Equal(t, bonk, Funder(txs, wallet))
	assert.Empty(t, Funder(nil, wallet))
}
