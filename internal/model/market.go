package model

import (
	"encoding/json"
	"sort"
	"time"
)

// PriceBar represents a single OHLCV observation.
type PriceBar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is an immutable run of bars for one symbol, held newest first.
// Bar(0) is always the most recent observation. Sources hand bars over in
// chronological order; NewSeries is the only place orientation is decided.
type Series struct {
	symbol string
	bars   []PriceBar
}

// NewSeries copies bars and orders them newest first.
func NewSeries(symbol string, bars []PriceBar) Series {
	cp := make([]PriceBar, len(bars))
	copy(cp, bars)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Time.After(cp[j].Time) })
	return Series{symbol: symbol, bars: cp}
}

func (s Series) Symbol() string { return s.symbol }
func (s Series) Len() int       { return len(s.bars) }
func (s Series) Empty() bool    { return len(s.bars) == 0 }

// Bar returns the i-th most recent bar.
func (s Series) Bar(i int) PriceBar { return s.bars[i] }

// Latest returns the most recent bar and false if the series is empty.
func (s Series) Latest() (PriceBar, bool) {
	if len(s.bars) == 0 {
		return PriceBar{}, false
	}
	return s.bars[0], true
}

// Closes returns closing prices, newest first.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}

// ClosesOldestFirst returns closing prices in chronological order.
func (s Series) ClosesOldestFirst() []float64 {
	n := len(s.bars)
	out := make([]float64, n)
	for i, b := range s.bars {
		out[n-1-i] = b.Close
	}
	return out
}

// Chronological returns a copy of the bars, oldest first.
func (s Series) Chronological() []PriceBar {
	n := len(s.bars)
	out := make([]PriceBar, n)
	for i, b := range s.bars {
		out[n-1-i] = b
	}
	return out
}

type seriesJSON struct {
	Symbol string     `json:"symbol"`
	Bars   []PriceBar `json:"bars"`
}

func (s Series) MarshalJSON() ([]byte, error) {
	return json.Marshal(seriesJSON{Symbol: s.symbol, Bars: s.bars})
}

func (s *Series) UnmarshalJSON(data []byte) error {
	var raw seriesJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NewSeries(raw.Symbol, raw.Bars)
	return nil
}
