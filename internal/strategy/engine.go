package strategy

import (
	"QuantSentinel/internal/model"

	"github.com/shopspring/decimal"
)

// RSI thresholds.
var (
	Overbought = decimal.NewFromInt(70)
	Oversold   = decimal.NewFromInt(30)
	Neutral    = decimal.NewFromInt(50)
)

// Rule is one entry of the signal decision list.
type Rule struct {
	Name   string
	Match  func(rsi decimal.Decimal, trend model.Trend) bool
	Signal model.Signal
}

// Rules is evaluated top to bottom; the first match wins.
// Missing inputs are handled before the table is consulted.
var Rules = []Rule{
	{"overbought", func(rsi decimal.Decimal, _ model.Trend) bool {
		return rsi.GreaterThan(Overbought)
	}, model.SignalSell},
	{"oversold", func(rsi decimal.Decimal, _ model.Trend) bool {
		return rsi.LessThan(Oversold)
	}, model.SignalBuy},
	{"uptrend momentum", func(rsi decimal.Decimal, trend model.Trend) bool {
		return trend == model.TrendUp && rsi.GreaterThan(Neutral)
	}, model.SignalBuy},
	{"downtrend momentum", func(rsi decimal.Decimal, trend model.Trend) bool {
		return trend == model.TrendDown && rsi.LessThan(Neutral)
	}, model.SignalSell},
}

// Reasons reported alongside HOLD when no rule fired.
const (
	ReasonMissingInput = "insufficient data"
	ReasonNoRule       = "no rule matched"
)

// ClassifyTrend compares the short and long simple moving averages.
func ClassifyTrend(sma20, sma50 decimal.NullDecimal) model.Trend {
	if !sma20.Valid || !sma50.Valid {
		return model.TrendUnknown
	}
	switch sma20.Decimal.Cmp(sma50.Decimal) {
	case 1:
		return model.TrendUp
	case -1:
		return model.TrendDown
	default:
		return model.TrendSideways
	}
}

// GenerateSignal maps RSI(14) and the trend to a trading signal and the name
// of the rule that produced it.
func GenerateSignal(rsi14 decimal.NullDecimal, trend model.Trend) (model.Signal, string) {
	if !rsi14.Valid || trend == model.TrendUnknown {
		return model.SignalHold, ReasonMissingInput
	}
	for _, r := range Rules {
		if r.Match(rsi14.Decimal, trend) {
			return r.Signal, r.Name
		}
	}
	return model.SignalHold, ReasonNoRule
}

// Decision is the combined trend and signal outcome.
type Decision struct {
	Trend  model.Trend
	Signal model.Signal
	Reason string
}

// Evaluate derives the trend from the moving averages and the signal from RSI.
func Evaluate(sma20, sma50, rsi14 decimal.NullDecimal) Decision {
	trend := ClassifyTrend(sma20, sma50)
	sig, reason := GenerateSignal(rsi14, trend)
	return Decision{Trend: trend, Signal: sig, Reason: reason}
}
