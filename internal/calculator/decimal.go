package calculator

import (
	"fmt"
	"math"

	"QuantSentinel/internal/apperrors"
	"QuantSentinel/internal/model"

	"github.com/shopspring/decimal"
)

// Rounding scales. All rounding is half away from zero.
const (
	PriceScale int32 = 4 // SMA, EMA, MACD, Bollinger
	RSIScale   int32 = 2
	RatioScale int32 = 6 // averages, RS, variance
)

// emaScale bounds intermediate EMA precision so repeated multiplication
// does not grow the coefficient without limit.
const emaScale int32 = 16

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

func null() decimal.NullDecimal { return decimal.NullDecimal{} }

func valid(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// newestCloses returns the n most recent closes as decimals, newest first.
func newestCloses(s model.Series, n int) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, n)
	for i := 0; i < n; i++ {
		c := s.Bar(i).Close
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("bar %d (%s): close=%v: %w",
				i, s.Bar(i).Time.Format("2006-01-02"), c, apperrors.ErrMalformedBar)
		}
		out[i] = decimal.NewFromFloat(c)
	}
	return out, nil
}

func checkPeriod(period int) error {
	if period <= 0 {
		return fmt.Errorf("period %d: %w", period, apperrors.ErrInvalidPeriod)
	}
	return nil
}
