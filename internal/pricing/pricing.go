// Package pricing computes line prices. All money math goes through
// shopspring/decimal so the rounding behaviour is exact and documented.
package pricing

import (
	"github.com/shopspring/decimal"
)

// Apply returns base reduced by percent, rounded to 2 decimal places.
// Ties round half up (prices are never negative, so decimal's
// half-away-from-zero rounding is half up here). percent 0 is the identity
// and returns base untouched. The function is deterministic and
// side-effect free; the same value is shown in the cart preview and frozen
// into the order row.
func Apply(base float64, percent int) float64 {
	if percent <= 0 {
		return base
	}
	if percent >= 100 {
		return 0
	}

	factor := decimal.New(int64(100-percent), -2)
	discounted := decimal.NewFromFloat(base).Mul(factor).Round(2)
	out, _ := discounted.Float64()
	return out
}
