package model

import "github.com/shopspring/decimal"

// Report keys for the flat indicator map.
const (
	IndicatorSMA20         = "SMA_20"
	IndicatorSMA50         = "SMA_50"
	IndicatorEMA12         = "EMA_12"
	IndicatorEMA26         = "EMA_26"
	IndicatorRSI14         = "RSI_14"
	IndicatorMACD          = "MACD"
	IndicatorMACDSignal    = "MACD_Signal"
	IndicatorMACDHistogram = "MACD_Histogram"
	IndicatorBBUpper       = "BB_Upper"
	IndicatorBBMiddle      = "BB_Middle"
	IndicatorBBLower       = "BB_Lower"
)

// IndicatorKeys lists every key an AnalysisReport carries, in display order.
var IndicatorKeys = []string{
	IndicatorSMA20, IndicatorSMA50,
	IndicatorEMA12, IndicatorEMA26,
	IndicatorRSI14,
	IndicatorMACD, IndicatorMACDSignal, IndicatorMACDHistogram,
	IndicatorBBUpper, IndicatorBBMiddle, IndicatorBBLower,
}

// MACDResult holds the MACD line, its signal line and the histogram.
// Valid is false when the inputs could not be computed; the map form is then empty.
type MACDResult struct {
	MACD      decimal.Decimal `json:"MACD"`
	Signal    decimal.Decimal `json:"Signal"`
	Histogram decimal.Decimal `json:"Histogram"`
	Valid     bool            `json:"-"`
}

// BollingerResult holds the three bands.
type BollingerResult struct {
	Upper  decimal.Decimal `json:"Upper"`
	Middle decimal.Decimal `json:"Middle"`
	Lower  decimal.Decimal `json:"Lower"`
	Valid  bool            `json:"-"`
}

// Map returns the named components, or an empty map when not computable.
func (m MACDResult) Map() map[string]decimal.Decimal {
	if !m.Valid {
		return map[string]decimal.Decimal{}
	}
	return map[string]decimal.Decimal{"MACD": m.MACD, "Signal": m.Signal, "Histogram": m.Histogram}
}

// Map returns the named bands, or an empty map when not computable.
func (b BollingerResult) Map() map[string]decimal.Decimal {
	if !b.Valid {
		return map[string]decimal.Decimal{}
	}
	return map[string]decimal.Decimal{"Upper": b.Upper, "Middle": b.Middle, "Lower": b.Lower}
}
