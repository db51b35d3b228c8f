package calculator

import (
	"QuantSentinel/internal/model"

	"github.com/shopspring/decimal"
)

// SMA computes the simple moving average of the period most recent closes.
// Returns null when the series holds fewer than period bars.
func SMA(s model.Series, period int) (decimal.NullDecimal, error) {
	if err := checkPeriod(period); err != nil {
		return null(), err
	}
	if s.Len() < period {
		return null(), nil
	}
	window, err := newestCloses(s, period)
	if err != nil {
		return null(), err
	}
	sum := decimal.Zero
	for _, c := range window {
		sum = sum.Add(c)
	}
	return valid(sum.DivRound(decimal.NewFromInt(int64(period)), PriceScale)), nil
}

// EMA computes the exponential moving average over the period most recent bars
// (or all bars when fewer are available). The average is seeded with the oldest
// close in that window and then walks forward to the newest bar:
//
//	ema = close*k + ema*(1-k),  k = 2/(period+1)
//
// The walk direction changes the result; do not reverse it.
func EMA(s model.Series, period int) (decimal.NullDecimal, error) {
	if err := checkPeriod(period); err != nil {
		return null(), err
	}
	if s.Empty() {
		return null(), nil
	}
	n := min(period, s.Len())
	window, err := newestCloses(s, n)
	if err != nil {
		return null(), err
	}

	k := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period)).Add(one))
	rest := one.Sub(k)

	ema := window[n-1]
	for i := n - 2; i >= 0; i-- {
		ema = window[i].Mul(k).Add(ema.Mul(rest)).Round(emaScale)
	}
	return valid(ema.Round(PriceScale)), nil
}
