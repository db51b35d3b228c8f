package model

import "time"

// Kind identifies the resource type a snapshot holds. Each kind carries its own TTL.
type Kind string

const (
	KindSeries Kind = "series" // price bar history
	KindQuote  Kind = "quote"  // latest aggregate quote
)

// Quote is the aggregate view of the latest trading session.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name,omitempty"`
	CurrentPrice  float64   `json:"currentPrice"`
	PreviousClose float64   `json:"previousClose"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Volume        float64   `json:"volume"`
	ChangePercent float64   `json:"changePercent"`
	High52w       float64   `json:"fiftyTwoWeekHigh,omitempty"`
	Low52w        float64   `json:"fiftyTwoWeekLow,omitempty"`
	Position52w   float64   `json:"fiftyTwoWeekPosition"` // 0 at the low, 1 at the high
	Time          time.Time `json:"time"`
}

// Snapshot is the unit stored in the freshness cache. A snapshot replaces the
// previous one for the same (Symbol, Kind) and is never modified afterwards.
type Snapshot struct {
	Symbol    string    `json:"symbol"`
	Kind      Kind      `json:"kind"`
	Source    string    `json:"source"`
	Series    Series    `json:"series"`
	Quote     *Quote    `json:"quote,omitempty"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Empty reports whether the snapshot carries no usable data for its kind.
func (s *Snapshot) Empty() bool {
	if s == nil {
		return true
	}
	switch s.Kind {
	case KindQuote:
		return s.Quote == nil
	default:
		return s.Series.Empty()
	}
}

// Age returns how old the snapshot is at now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}
