package recorder

import (
	"context"
	"time"

	"QuantSentinel/internal/model"
)

// NoopRecorder is used when SQLite is not configured. As a provider it
// always yields an empty series.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) Name() string      { return Name }
func (n *NoopRecorder) IsConnected() bool { return true }

func (n *NoopRecorder) FetchSeries(context.Context, string, int) ([]model.PriceBar, error) {
	return nil, nil
}

func (n *NoopRecorder) FetchLatest(context.Context, string) (*model.Quote, error) { return nil, nil }

func (n *NoopRecorder) SaveBars(context.Context, string, []model.PriceBar) error { return nil }
func (n *NoopRecorder) SaveQuote(context.Context, *model.Quote) error            { return nil }
func (n *NoopRecorder) RecordRefresh(context.Context, model.RefreshEvent) error  { return nil }
func (n *NoopRecorder) ActiveSymbols(context.Context) ([]string, error)          { return nil, nil }
func (n *NoopRecorder) Close() error                                             { return nil }

func (n *NoopRecorder) RecentRefreshes(context.Context, string, int) ([]model.RefreshEvent, error) {
	return nil, nil
}

func (n *NoopRecorder) Purge(context.Context, time.Time, time.Time) (PurgeResult, error) {
	return PurgeResult{}, nil
}
