package calculator

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// PercentChange returns (current - previous) / previous * 100 rounded to two
// decimal places. It returns nil when either price is missing or not finite,
// or when previous is zero.
func PercentChange(current, previous *float64) *float64 {
	if Finite(current) == nil || Finite(previous) == nil || *previous == 0 {
		return nil
	}
	cur := decimal.NewFromFloat(*current)
	prev := decimal.NewFromFloat(*previous)
	pct, _ := cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return &pct
}

// Finite returns v unless it is NaN or infinite, in which case it returns nil.
func Finite(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}

// Gainer is one ticker's latest price movement.
type Gainer struct {
	Ticker       string   `json:"reddit_ticker"`
	CurrentPrice *float64 `json:"current_price"`
	ChangePct    *float64 `json:"change_pct"`
}

// RankGainers orders gainers by change descending, unknown changes last, and
// keeps at most n of them. Ties keep ticker order.
func RankGainers(gainers []Gainer, n int) []Gainer {
	out := make([]Gainer, len(gainers))
	copy(out, gainers)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].ChangePct, out[j].ChangePct
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
