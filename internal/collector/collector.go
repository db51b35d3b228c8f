package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"QuantSentinel/internal/apperrors"
	"QuantSentinel/internal/metrics"
	"QuantSentinel/internal/model"
)

// Selector picks the provider for a request: the live one while it reports
// connected, otherwise the local history store.
type Selector struct {
	Live    Source
	Local   Source
	Prefix  string // prepended to upper-cased symbols for the live provider
	Metrics *metrics.Metrics
}

// Select returns the provider and the symbol in that provider's format.
// It never dials; live providers reconnect lazily inside IsConnected.
func (s *Selector) Select(symbol string) (Source, string) {
	if s.Live != nil {
		up := s.Live.IsConnected()
		s.Metrics.SetLiveConnected(up)
		if up {
			return s.Live, s.Prefix + strings.ToUpper(symbol)
		}
	}
	return s.Local, symbol
}

// Archive persists live data so the local provider can serve it later and
// keeps an audit trail of refresh attempts.
type Archive interface {
	SaveBars(ctx context.Context, symbol string, bars []model.PriceBar) error
	SaveQuote(ctx context.Context, q *model.Quote) error
	RecordRefresh(ctx context.Context, ev model.RefreshEvent) error
}

type runIDKey struct{}

// WithRunID tags ctx with a batch run id recorded on refresh events.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func runID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Refresher fetches a fresh snapshot for one (symbol, kind).
type Refresher struct {
	Selector     *Selector
	Archive      Archive // optional
	FetchTimeout time.Duration
	HistoryDepth int
	Metrics      *metrics.Metrics
	Now          func() time.Time
}

// NewRefresher creates a Refresher.
func NewRefresher(sel *Selector, archive Archive, fetchTimeout time.Duration, depth int, m *metrics.Metrics) *Refresher {
	return &Refresher{
		Selector:     sel,
		Archive:      archive,
		FetchTimeout: fetchTimeout,
		HistoryDepth: depth,
		Metrics:      m,
		Now:          time.Now,
	}
}

// Refresh fetches through the selected provider, bounded by FetchTimeout.
// Errors wrap ErrSourceUnavailable, ErrFetchTimeout or ErrEmptyResult.
func (r *Refresher) Refresh(ctx context.Context, symbol string, kind model.Kind) (*model.Snapshot, error) {
	src, sym := r.Selector.Select(symbol)
	if src == nil {
		return nil, fmt.Errorf("%s: no provider configured: %w", symbol, apperrors.ErrSourceUnavailable)
	}

	fetchCtx := ctx
	if r.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.FetchTimeout)
		defer cancel()
	}

	start := r.Now()
	snap := &model.Snapshot{Symbol: symbol, Kind: kind, Source: src.Name()}
	var err error
	switch kind {
	case model.KindSeries:
		var bars []model.PriceBar
		bars, err = src.FetchSeries(fetchCtx, sym, r.HistoryDepth)
		if err == nil {
			snap.Series = model.NewSeries(symbol, bars)
		}
	case model.KindQuote:
		var q *model.Quote
		q, err = src.FetchLatest(fetchCtx, sym)
		if err == nil && q != nil {
			cp := *q
			cp.Symbol = symbol
			snap.Quote = &cp
		}
	default:
		return nil, fmt.Errorf("%s/%s: %w", symbol, kind, apperrors.ErrUnknownKind)
	}
	elapsed := r.Now().Sub(start)

	err = classify(fetchCtx, src.Name(), sym, err)
	if err == nil && snap.Empty() {
		err = fmt.Errorf("%s %s: %w", src.Name(), sym, apperrors.ErrEmptyResult)
	}
	r.Metrics.Refresh(src.Name(), outcome(err), elapsed)
	r.record(ctx, snap, elapsed, err)
	if err != nil {
		return nil, err
	}

	snap.FetchedAt = r.Now()
	if src != r.Selector.Local {
		r.archive(ctx, snap)
	}
	return snap, nil
}

// classify maps a provider error onto the refresh taxonomy.
func classify(ctx context.Context, source, sym string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w: %v", source, sym, apperrors.ErrFetchTimeout, err)
	}
	return fmt.Errorf("%s %s: %w: %v", source, sym, apperrors.ErrSourceUnavailable, err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrFetchTimeout):
		return "timeout"
	case errors.Is(err, apperrors.ErrEmptyResult):
		return "empty"
	default:
		return "error"
	}
}

func (r *Refresher) archive(ctx context.Context, snap *model.Snapshot) {
	if r.Archive == nil {
		return
	}
	var err error
	switch snap.Kind {
	case model.KindSeries:
		err = r.Archive.SaveBars(ctx, snap.Symbol, snap.Series.Chronological())
	case model.KindQuote:
		err = r.Archive.SaveQuote(ctx, snap.Quote)
	}
	if err != nil {
		log.Printf("[WARN] archive %s/%s failed: %v", snap.Symbol, snap.Kind, err)
	}
}

func (r *Refresher) record(ctx context.Context, snap *model.Snapshot, elapsed time.Duration, fetchErr error) {
	if r.Archive == nil {
		return
	}
	ev := model.RefreshEvent{
		RunID:    runID(ctx),
		Symbol:   snap.Symbol,
		Kind:     snap.Kind,
		Source:   snap.Source,
		OK:       fetchErr == nil,
		Bars:     snap.Series.Len(),
		Duration: elapsed,
		At:       r.Now(),
	}
	if fetchErr != nil {
		ev.Error = fetchErr.Error()
	}
	if err := r.Archive.RecordRefresh(ctx, ev); err != nil {
		log.Printf("[WARN] record refresh %s/%s failed: %v", snap.Symbol, snap.Kind, err)
	}
}
