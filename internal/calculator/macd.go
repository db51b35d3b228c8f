package calculator

import (
	"fmt"
	"math"

	"QuantSentinel/internal/apperrors"
	"QuantSentinel/internal/model"

	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"
)

// signalApprox scales the MACD line into the approximate signal line.
var signalApprox = decimal.RequireFromString("0.8")

// MACD computes the approximate MACD from the fast and slow EMAs.
// The signal line is 0.8 × MACD rather than an EMA of the MACD history,
// so the histogram is always 0.2 × MACD.
func MACD(s model.Series, fast, slow int) (model.MACDResult, error) {
	f, err := EMA(s, fast)
	if err != nil {
		return model.MACDResult{}, fmt.Errorf("fast ema: %w", err)
	}
	sl, err := EMA(s, slow)
	if err != nil {
		return model.MACDResult{}, fmt.Errorf("slow ema: %w", err)
	}
	return MACDFromLines(f, sl), nil
}

// MACDFromLines derives the approximate MACD from already computed EMAs.
// Only the line is rounded; signal and histogram keep the exact 0.8 and 0.2
// multiples of it. Either input null yields an invalid result.
func MACDFromLines(fast, slow decimal.NullDecimal) model.MACDResult {
	if !fast.Valid || !slow.Valid {
		return model.MACDResult{}
	}
	line := fast.Decimal.Sub(slow.Decimal).Round(PriceScale)
	signal := line.Mul(signalApprox)
	return model.MACDResult{
		MACD:      line,
		Signal:    signal,
		Histogram: line.Sub(signal),
		Valid:     true,
	}
}

// MACDSignalEMA computes the textbook MACD whose signal line is an EMA of the
// MACD history. Needs max(fast, slow)+signal-1 bars; fewer yields an invalid result.
func MACDSignalEMA(s model.Series, fast, slow, signal int) (model.MACDResult, error) {
	for _, p := range []int{fast, slow, signal} {
		if err := checkPeriod(p); err != nil {
			return model.MACDResult{}, err
		}
	}
	if max(fast, slow) > s.Len()-signal+1 {
		return model.MACDResult{}, nil
	}
	closes := s.ClosesOldestFirst()
	for i, c := range closes {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return model.MACDResult{}, fmt.Errorf("bar %d: close=%v: %w", len(closes)-1-i, c, apperrors.ErrMalformedBar)
		}
	}

	macd, sig, hist := talib.Macd(closes, fast, slow, signal)
	last := len(closes) - 1
	if last >= len(macd) || math.IsNaN(macd[last]) || math.IsNaN(sig[last]) {
		return model.MACDResult{}, nil
	}
	return model.MACDResult{
		MACD:      decimal.NewFromFloat(macd[last]).Round(PriceScale),
		Signal:    decimal.NewFromFloat(sig[last]).Round(PriceScale),
		Histogram: decimal.NewFromFloat(hist[last]).Round(PriceScale),
		Valid:     true,
	}, nil
}
