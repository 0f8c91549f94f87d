package normalizer

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-sol-agent/internal/models"
)

const (
	SOLMint  = "So11111111111111111111111111111111111111112"
	USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDTMint = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"

	// USDPerSOL is the fixed conversion rate; there is no price oracle.
	USDPerSOL      = 150.0
	LamportsPerSOL = 1e9
)

// IsBase reports whether mint is the native coin, a stablecoin or unset.
func IsBase(mint string) bool {
	switch mint {
	case "", SOLMint, USDCMint, USDTMint:
		return true
	}
	return false
}

func isStable(mint string) bool {
	return mint == USDCMint || mint == USDTMint
}

// Fill is what an extractor recognises in a transaction. The normalizer adds
// the fields every trade shares.
type Fill struct {
	Side      models.Side
	Mint      string
	Symbol    string
	AmountSOL float64
	PriceUSD  float64
}

// Extractor recognises one raw transaction shape.
type Extractor interface {
	Name() string
	Extract(tx gjson.Result, wallet string) (Fill, bool)
}

type Normalizer struct {
	chain []Extractor
	now   func() time.Time
}

// New builds a normalizer over the given chain, or the default one when empty.
func New(extractors ...Extractor) *Normalizer {
	if len(extractors) == 0 {
		extractors = []Extractor{TransferExtractor{}, SwapEventExtractor{}}
	}
	return &Normalizer{chain: extractors, now: time.Now}
}

var std = New()

func Normalize(tx gjson.Result, wallet string) (*models.Trade, bool) {
	return std.Normalize(tx, wallet)
}

func NormalizeBatch(txs []gjson.Result, wallet string) []*models.Trade {
	return std.NormalizeBatch(txs, wallet)
}

// NormalizeBytes parses raw and normalizes it. Invalid JSON is a non-match.
func (n *Normalizer) NormalizeBytes(raw []byte, wallet string) (*models.Trade, bool) {
	if !gjson.ValidBytes(raw) {
		return nil, false
	}
	return n.Normalize(gjson.ParseBytes(raw), wallet)
}

// Normalize runs the chain and returns the first trade recognised.
func (n *Normalizer) Normalize(tx gjson.Result, wallet string) (*models.Trade, bool) {
	if !tx.IsObject() || wallet == "" {
		return nil, false
	}
	sig := tx.Get("signature").String()
	if sig == "" {
		return nil, false
	}

	for _, ex := range n.chain {
		fill, ok := ex.Extract(tx, wallet)
		if !ok {
			continue
		}
		symbol := fill.Symbol
		if symbol == "" {
			symbol = shortMint(fill.Mint)
		}
		return &models.Trade{
			Signature:     sig,
			WalletAddress: wallet,
			TokenAddress:  fill.Mint,
			TokenSymbol:   symbol,
			Side:          fill.Side,
			AmountSOL:     fill.AmountSOL,
			AmountUSD:     fill.AmountSOL * USDPerSOL,
			PriceUSD:      fill.PriceUSD,
			BlockTime:     n.blockTime(tx),
			UsedJito:      strings.Contains(strings.ToLower(tx.Raw), "jito"),
		}, true
	}
	return nil, false
}

// NormalizeBatch keeps only recognised trades, in input order.
func (n *Normalizer) NormalizeBatch(txs []gjson.Result, wallet string) []*models.Trade {
	out := make([]*models.Trade, 0, len(txs))
	for _, tx := range txs {
		if t, ok := n.Normalize(tx, wallet); ok {
			out = append(out, t)
		}
	}
	return out
}

func (n *Normalizer) blockTime(tx gjson.Result) time.Time {
	if ts := tx.Get("timestamp").Int(); ts > 0 {
		return time.Unix(ts, 0).UTC()
	}
	return n.now().UTC()
}

// WalletFromEvent returns the first account whose native balance moved.
func WalletFromEvent(tx gjson.Result) string {
	for _, acc := range tx.Get("accountData").Array() {
		if acc.Get("nativeBalanceChange").Float() != 0 {
			return acc.Get("account").String()
		}
	}
	return ""
}

func Signature(tx gjson.Result) string {
	return tx.Get("signature").String()
}

func shortMint(mint string) string {
	if len(mint) > 8 {
		return mint[:8]
	}
	return mint
}

// Funder returns the sender of the oldest native SOL transfer into wallet
// found in txs, or "" when none is present. txs may be in any order.
func Funder(txs []gjson.Result, wallet string) string {
	var (
		funder string
		oldest int64
	)
	for _, tx := range txs {
		ts := tx.Get("timestamp").Int()
		for _, nt := range tx.Get("nativeTransfers").Array() {
			from := nt.Get("fromUserAccount").String()
			if nt.Get("toUserAccount").String() != wallet || from == "" || from == wallet {
				continue
			}
			if nt.Get("amount").Int() <= 0 {
				continue
			}
			if funder == "" || ts < oldest {
				funder, oldest = from, ts
			}
			break
		}
	}
	return funder
}
