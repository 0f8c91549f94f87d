package botdetect

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/utrading/utrading-sol-agent/internal/models"
)

func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// CV is the population coefficient of variation, std / (mean + 1e-9).
func CV(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := Mean(xs)
	variance := 0.0
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	std := math.Sqrt(variance / float64(len(xs)))
	return std / (mean + 1e-9)
}

// PositiveAmounts returns the SOL size of every trade with a size.
func PositiveAmounts(trades []*models.Trade) []float64 {
	out := make([]float64, 0, len(trades))
	for _, t := range trades {
		if t.AmountSOL > 0 {
			out = append(out, t.AmountSOL)
		}
	}
	return out
}

// Round rounds half away from zero to places decimals.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
