package calculator

import (
	"QuantSentinel/internal/model"

	"github.com/shopspring/decimal"
)

// RSI computes the relative strength index over the period most recent
// bar-to-bar transitions using simple (not Wilder-smoothed) averages.
// Requires period+1 bars. Returns exactly 100 when the window has no losses.
func RSI(s model.Series, period int) (decimal.NullDecimal, error) {
	if err := checkPeriod(period); err != nil {
		return null(), err
	}
	if period >= s.Len() {
		return null(), nil
	}
	window, err := newestCloses(s, period+1)
	if err != nil {
		return null(), err
	}

	gains, losses := decimal.Zero, decimal.Zero
	for i := 1; i <= period; i++ {
		change := window[i-1].Sub(window[i]) // newer minus older
		if change.IsPositive() {
			gains = gains.Add(change)
		} else {
			losses = losses.Add(change.Abs())
		}
	}

	p := decimal.NewFromInt(int64(period))
	avgGain := gains.DivRound(p, RatioScale)
	avgLoss := losses.DivRound(p, RatioScale)
	if avgLoss.IsZero() {
		return valid(hundred), nil
	}

	rs := avgGain.DivRound(avgLoss, RatioScale)
	return valid(hundred.Sub(hundred.DivRound(one.Add(rs), RSIScale))), nil
}
