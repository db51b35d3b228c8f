package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Trend is the moving-average trend classification.
type Trend string

const (
	TrendUp       Trend = "UPTREND"
	TrendDown     Trend = "DOWNTREND"
	TrendSideways Trend = "SIDEWAYS"
	TrendUnknown  Trend = "UNKNOWN"
)

// Signal is the discrete trading signal.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// AnalysisReport is built fresh for every request and never cached.
type AnalysisReport struct {
	Symbol       string
	Indicators   map[string]decimal.NullDecimal
	Trend        Trend
	Signal       Signal
	SignalReason string
	Source       string
	DataAsOf     time.Time
	ComputedAt   time.Time
	Error        string
}

// NewAnalysisReport returns a report with every indicator null.
func NewAnalysisReport(symbol string, now time.Time) *AnalysisReport {
	ind := make(map[string]decimal.NullDecimal, len(IndicatorKeys))
	for _, k := range IndicatorKeys {
		ind[k] = decimal.NullDecimal{}
	}
	return &AnalysisReport{
		Symbol:     symbol,
		Indicators: ind,
		Trend:      TrendUnknown,
		Signal:     SignalHold,
		ComputedAt: now,
	}
}

// Value returns the named indicator.
func (r *AnalysisReport) Value(key string) decimal.NullDecimal {
	return r.Indicators[key]
}

// MarshalJSON renders the report as one flat object: indicator keys map to
// numbers or null, followed by trend, tradingSignal and timestamps.
func (r *AnalysisReport) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Indicators)+8)
	for k, v := range r.Indicators {
		if v.Valid {
			out[k] = json.Number(v.Decimal.String())
		} else {
			out[k] = nil
		}
	}
	out["symbol"] = r.Symbol
	out["trend"] = r.Trend
	out["tradingSignal"] = r.Signal
	if r.SignalReason != "" {
		out["signalReason"] = r.SignalReason
	}
	if r.Source != "" {
		out["source"] = r.Source
	}
	if !r.DataAsOf.IsZero() {
		out["dataAsOf"] = r.DataAsOf
	}
	out["computedAt"] = r.ComputedAt
	if r.Error != "" {
		out["error"] = r.Error
	}
	return json.Marshal(out)
}

// SignalMark is the last signal observed for a symbol.
type SignalMark struct {
	Signal Signal    `json:"signal"`
	Trend  Trend     `json:"trend"`
	At     time.Time `json:"at"`
}

// WatchState persists the last signal per symbol across restarts.
type WatchState struct {
	Signals   map[string]SignalMark `json:"signals"`
	UpdatedAt time.Time             `json:"updated_at"`
}
