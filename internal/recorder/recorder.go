package recorder

import (
	"context"
	"time"

	"QuantSentinel/internal/model"
)

// Name is the source name reported for data served from the history store.
const Name = "local"

// Recorder is the local price history. It archives live fetches, serves them
// back as the fallback provider and keeps an audit trail of refreshes.
type Recorder interface {
	// provider side
	Name() string
	FetchSeries(ctx context.Context, symbol string, count int) ([]model.PriceBar, error)
	FetchLatest(ctx context.Context, symbol string) (*model.Quote, error)
	IsConnected() bool

	// archive side
	SaveBars(ctx context.Context, symbol string, bars []model.PriceBar) error
	SaveQuote(ctx context.Context, q *model.Quote) error
	RecordRefresh(ctx context.Context, ev model.RefreshEvent) error

	// maintenance
	ActiveSymbols(ctx context.Context) ([]string, error)
	RecentRefreshes(ctx context.Context, symbol string, limit int) ([]model.RefreshEvent, error)
	Purge(ctx context.Context, barsBefore, eventsBefore time.Time) (PurgeResult, error)
	Close() error
}

// PurgeResult counts rows removed by Purge.
type PurgeResult struct {
	Bars   int64
	Quotes int64
	Events int64
}
