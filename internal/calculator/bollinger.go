package calculator

import (
	"fmt"
	"math"

	"QuantSentinel/internal/model"

	"github.com/shopspring/decimal"
)

// Bollinger computes bands of mult population standard deviations around the
// period SMA. The band width is rounded once and applied to both sides, so the
// bands are exactly symmetric around the middle.
func Bollinger(s model.Series, period int, mult float64) (model.BollingerResult, error) {
	if math.IsNaN(mult) || math.IsInf(mult, 0) {
		return model.BollingerResult{}, fmt.Errorf("bollinger multiplier %v is not finite", mult)
	}
	mid, err := SMA(s, period)
	if err != nil || !mid.Valid {
		return model.BollingerResult{}, err
	}
	window, err := newestCloses(s, period)
	if err != nil {
		return model.BollingerResult{}, err
	}

	sumSq := decimal.Zero
	for _, c := range window {
		d := c.Sub(mid.Decimal)
		sumSq = sumSq.Add(d.Mul(d))
	}
	variance := sumSq.DivRound(decimal.NewFromInt(int64(period)), RatioScale)
	stddev := math.Sqrt(variance.InexactFloat64())

	width := decimal.NewFromFloat(stddev).Mul(decimal.NewFromFloat(mult)).Round(PriceScale)
	return model.BollingerResult{
		Upper:  mid.Decimal.Add(width),
		Middle: mid.Decimal,
		Lower:  mid.Decimal.Sub(width),
		Valid:  true,
	}, nil
}
