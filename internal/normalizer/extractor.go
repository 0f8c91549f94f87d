package normalizer

import (
	"math"

	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-sol-agent/internal/models"
)

// TransferExtractor reads tokenTransfers plus the wallet's native delta.
type TransferExtractor struct{}

func (TransferExtractor) Name() string { return "token_transfers" }

func (TransferExtractor) Extract(tx gjson.Result, wallet string) (Fill, bool) {
	transfers := tx.Get("tokenTransfers").Array()
	if len(transfers) == 0 {
		return Fill{}, false
	}

	var sent, received []gjson.Result
	for _, t := range transfers {
		if t.Get("fromUserAccount").String() == wallet {
			sent = append(sent, t)
		}
		if t.Get("toUserAccount").String() == wallet {
			received = append(received, t)
		}
	}
	if len(sent) == 0 && len(received) == 0 {
		return Fill{}, false
	}

	native := nativeChange(tx, wallet)

	if leg, ok := firstNonBase(received); ok {
		sol := 0.0
		if native < 0 {
			sol = math.Abs(native) / LamportsPerSOL
		}
		if sol == 0 {
			sol = stableAsSOL(sent)
		}
		return transferFill(models.SideBuy, leg, sol), true
	}

	if leg, ok := firstNonBase(sent); ok {
		sol := 0.0
		if native > 0 {
			sol = native / LamportsPerSOL
		}
		if sol == 0 {
			sol = stableAsSOL(received)
		}
		return transferFill(models.SideSell, leg, sol), true
	}

	return Fill{}, false
}

func transferFill(side models.Side, leg gjson.Result, sol float64) Fill {
	amount := leg.Get("tokenAmount").Float()
	price := 0.0
	if amount > 0 {
		price = sol * USDPerSOL / amount
	}
	return Fill{
		Side:      side,
		Mint:      leg.Get("mint").String(),
		Symbol:    leg.Get("symbol").String(),
		AmountSOL: sol,
		PriceUSD:  price,
	}
}

func nativeChange(tx gjson.Result, wallet string) float64 {
	for _, acc := range tx.Get("accountData").Array() {
		if acc.Get("account").String() == wallet {
			return acc.Get("nativeBalanceChange").Float()
		}
	}
	return 0
}

// firstNonBase keeps upstream order; later non-base mints are ignored.
func firstNonBase(legs []gjson.Result) (gjson.Result, bool) {
	for _, t := range legs {
		if !IsBase(t.Get("mint").String()) {
			return t, true
		}
	}
	return gjson.Result{}, false
}

func stableAsSOL(legs []gjson.Result) float64 {
	for _, t := range legs {
		if isStable(t.Get("mint").String()) {
			return t.Get("tokenAmount").Float() / USDPerSOL
		}
	}
	return 0
}

// SwapEventExtractor reads events.swap.
type SwapEventExtractor struct{}

func (SwapEventExtractor) Name() string { return "swap_event" }

func (SwapEventExtractor) Extract(tx gjson.Result, wallet string) (Fill, bool) {
	swap := tx.Get("events.swap")
	if !swap.IsObject() {
		return Fill{}, false
	}

	nativeIn := swap.Get("nativeInput")
	nativeOut := swap.Get("nativeOutput")
	tokenIns := swap.Get("tokenInputs").Array()
	tokenOuts := swap.Get("tokenOutputs").Array()

	switch {
	case present(nativeIn) && len(tokenOuts) > 0:
		sol := nativeIn.Get("amount").Float() / LamportsPerSOL
		return swapFill(models.SideBuy, tokenOuts[0], sol), true

	case len(tokenIns) > 0 && present(nativeOut):
		sol := nativeOut.Get("amount").Float() / LamportsPerSOL
		return swapFill(models.SideSell, tokenIns[0], sol), true

	case len(tokenIns) > 0 && len(tokenOuts) > 0:
		in, out := tokenIns[0], tokenOuts[0]
		inMint, outMint := in.Get("mint").String(), out.Get("mint").String()
		switch {
		case IsBase(inMint) && !IsBase(outMint):
			return swapFill(models.SideBuy, out, legAsSOL(in)), true
		case IsBase(outMint) && !IsBase(inMint):
			return swapFill(models.SideSell, in, legAsSOL(out)), true
		}
	}
	return Fill{}, false
}

func present(r gjson.Result) bool {
	return r.IsObject() && r.Get("amount").Exists()
}

// legAsSOL converts a SOL or stablecoin leg to SOL using its decimals.
func legAsSOL(leg gjson.Result) float64 {
	raw := leg.Get("rawTokenAmount")
	amount := raw.Get("tokenAmount").Float() / math.Pow10(int(raw.Get("decimals").Int()))
	if isStable(leg.Get("mint").String()) {
		return amount / USDPerSOL
	}
	return amount
}

func swapFill(side models.Side, leg gjson.Result, sol float64) Fill {
	// raw token units, floored at one
	amount := math.Max(leg.Get("rawTokenAmount.tokenAmount").Float(), 1)
	return Fill{
		Side:      side,
		Mint:      leg.Get("mint").String(),
		Symbol:    leg.Get("symbol").String(),
		AmountSOL: sol,
		PriceUSD:  sol * USDPerSOL / amount,
	}
}
