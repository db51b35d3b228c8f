package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"QuantSentinel/internal/apperrors"
	"QuantSentinel/internal/model"
)

type stubSource struct {
	name      string
	connected bool
	bars      []model.PriceBar
	quote     *model.Quote
	err       error
	block     bool

	mu      sync.Mutex
	symbols []string
}

func (s *stubSource) Name() string      { return s.name }
func (s *stubSource) IsConnected() bool { return s.connected }

func (s *stubSource) FetchSeries(ctx context.Context, symbol string, count int) ([]model.PriceBar, error) {
	s.mu.Lock()
	s.symbols = append(s.symbols, symbol)
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.bars, s.err
}

func (s *stubSource) FetchLatest(ctx context.Context, symbol string) (*model.Quote, error) {
	s.mu.Lock()
	s.symbols = append(s.symbols, symbol)
	s.mu.Unlock()
	return s.quote, s.err
}

type memArchive struct {
	mu     sync.Mutex
	bars   map[string]int
	quotes int
	events []model.RefreshEvent
}

func newMemArchive() *memArchive { return &memArchive{bars: map[string]int{}} }

func (a *memArchive) SaveBars(_ context.Context, symbol string, bars []model.PriceBar) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bars[symbol] += len(bars)
	return nil
}

func (a *memArchive) SaveQuote(_ context.Context, _ *model.Quote) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.quotes++
	return nil
}

func (a *memArchive) RecordRefresh(_ context.Context, ev model.RefreshEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return nil
}

func sampleBars(n int) []model.PriceBar {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.PriceBar, n)
	for i := range bars {
		p := 100 + float64(i)
		bars[i] = model.PriceBar{Time: start.AddDate(0, 0, i), Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 1000}
	}
	return bars
}

func TestSelect_FallsBackWhenDisconnected(t *testing.T) {
	live := &stubSource{name: "live", connected: false}
	local := &stubSource{name: "local"}
	sel := &Selector{Live: live, Local: local, Prefix: "US."}

	src, sym := sel.Select("aapl")
	if src != local {
		t.Fatalf("expected local source, got %s", src.Name())
	}
	if sym != "aapl" {
		t.Errorf("expected symbol unchanged, got %q", sym)
	}
}

func TestSelect_LiveNormalizesSymbol(t *testing.T) {
	live := &stubSource{name: "live", connected: true}
	sel := &Selector{Live: live, Local: &stubSource{name: "local"}, Prefix: "US."}

	src, sym := sel.Select("aapl")
	if src != live {
		t.Fatalf("expected live source, got %s", src.Name())
	}
	if sym != "US.AAPL" {
		t.Errorf("expected US.AAPL, got %q", sym)
	}
}

func TestSelect_NoLiveProvider(t *testing.T) {
	local := &stubSource{name: "local"}
	sel := &Selector{Local: local, Prefix: "US."}
	if src, _ := sel.Select("MSFT"); src != local {
		t.Errorf("expected local source")
	}
}

func TestRefresh_LiveArchives(t *testing.T) {
	live := &stubSource{name: "live", connected: true, bars: sampleBars(30)}
	archive := newMemArchive()
	r := NewRefresher(&Selector{Live: live, Local: &stubSource{name: "local"}, Prefix: "US."}, archive, time.Second, 60, nil)

	snap, err := r.Refresh(WithRunID(context.Background(), "run-1"), "AAPL", model.KindSeries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Symbol != "AAPL" || snap.Source != "live" || snap.Series.Len() != 30 {
		t.Errorf("unexpected snapshot: %s %s %d", snap.Symbol, snap.Source, snap.Series.Len())
	}
	if latest, _ := snap.Series.Latest(); latest.Close != 129 {
		t.Errorf("expected newest close 129, got %v", latest.Close)
	}
	if live.symbols[0] != "US.AAPL" {
		t.Errorf("expected normalized symbol, got %q", live.symbols[0])
	}
	if archive.bars["AAPL"] != 30 {
		t.Errorf("expected 30 archived bars, got %d", archive.bars["AAPL"])
	}
	if len(archive.events) != 1 || !archive.events[0].OK || archive.events[0].RunID != "run-1" {
		t.Errorf("unexpected refresh events: %+v", archive.events)
	}
}

func TestRefresh_LocalNotArchived(t *testing.T) {
	local := &stubSource{name: "local", bars: sampleBars(5)}
	archive := newMemArchive()
	r := NewRefresher(&Selector{Local: local}, archive, time.Second, 60, nil)

	if _, err := r.Refresh(context.Background(), "AAPL", model.KindSeries); err != nil {
		t.Fatal(err)
	}
	if len(archive.bars) != 0 {
		t.Errorf("local data should not be archived again: %v", archive.bars)
	}
}

func TestRefresh_Timeout(t *testing.T) {
	live := &stubSource{name: "live", connected: true, block: true}
	r := NewRefresher(&Selector{Live: live, Local: &stubSource{name: "local"}}, nil, 20*time.Millisecond, 60, nil)

	start := time.Now()
	_, err := r.Refresh(context.Background(), "AAPL", model.KindSeries)
	if !errors.Is(err, apperrors.ErrFetchTimeout) {
		t.Fatalf("expected ErrFetchTimeout, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("refresh not bounded by timeout")
	}
}

func TestRefresh_EmptyAndFailure(t *testing.T) {
	archive := newMemArchive()
	empty := NewRefresher(&Selector{Local: &stubSource{name: "local"}}, archive, time.Second, 60, nil)
	if _, err := empty.Refresh(context.Background(), "X", model.KindSeries); !errors.Is(err, apperrors.ErrEmptyResult) {
		t.Errorf("expected ErrEmptyResult, got %v", err)
	}
	if len(archive.events) != 1 || archive.events[0].OK {
		t.Errorf("expected one failed event, got %+v", archive.events)
	}

	failing := NewRefresher(&Selector{Local: &stubSource{name: "local", err: errors.New("boom")}}, nil, time.Second, 60, nil)
	if _, err := failing.Refresh(context.Background(), "X", model.KindSeries); !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}

	none := NewRefresher(&Selector{}, nil, time.Second, 60, nil)
	if _, err := none.Refresh(context.Background(), "X", model.KindSeries); !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable without providers, got %v", err)
	}
}

func TestRefresh_Quote(t *testing.T) {
	live := &stubSource{name: "live", connected: true, quote: &model.Quote{Symbol: "US.AAPL", CurrentPrice: 190}}
	archive := newMemArchive()
	r := NewRefresher(&Selector{Live: live, Local: &stubSource{name: "local"}, Prefix: "US."}, archive, time.Second, 60, nil)

	snap, err := r.Refresh(context.Background(), "AAPL", model.KindQuote)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Quote.Symbol != "AAPL" || snap.Quote.CurrentPrice != 190 {
		t.Errorf("unexpected quote %+v", snap.Quote)
	}
	if live.quote.Symbol != "US.AAPL" {
		t.Error("provider quote must not be modified")
	}
	if archive.quotes != 1 {
		t.Errorf("expected archived quote, got %d", archive.quotes)
	}
}

func TestRefresh_UnknownKind(t *testing.T) {
	r := NewRefresher(&Selector{Local: &stubSource{name: "local"}}, nil, time.Second, 60, nil)
	if _, err := r.Refresh(context.Background(), "X", model.Kind("profile")); !errors.Is(err, apperrors.ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestSimulatedSource_Deterministic(t *testing.T) {
	day := time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)
	s := NewSimulatedSource(150)
	s.Now = func() time.Time { return day }

	a, _ := s.FetchSeries(context.Background(), "US.AAPL", 40)
	b, _ := s.FetchSeries(context.Background(), "US.AAPL", 40)
	if len(a) != 40 {
		t.Fatalf("expected 40 bars, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("bar %d differs between calls", i)
		}
		if a[i].Close < 150*0.975 || a[i].Close > 150*1.025 {
			t.Errorf("bar %d close %v outside band", i, a[i].Close)
		}
	}
	if !a[39].Time.Equal(day.Truncate(24 * time.Hour)) {
		t.Errorf("expected last bar on %s, got %s", day.Truncate(24*time.Hour), a[39].Time)
	}

	q, err := s.FetchLatest(context.Background(), "US.AAPL")
	if err != nil || q.Name != "Apple Inc." {
		t.Errorf("unexpected quote %+v, err %v", q, err)
	}

	s.Disconnect()
	if s.IsConnected() {
		t.Error("expected disconnected")
	}
	_ = s.Connect(context.Background())
	if !s.Status().Connected {
		t.Error("expected connected after Connect")
	}
}

func TestQuoteFromSeries(t *testing.T) {
	q := QuoteFromSeries(model.NewSeries("AAPL", sampleBars(3)))
	if q.CurrentPrice != 102 || q.PreviousClose != 101 {
		t.Errorf("unexpected prices %+v", q)
	}
	if q.High52w != 103 || q.Low52w != 99 || q.Position52w != 0.75 {
		t.Errorf("unexpected range %v/%v pos %v", q.High52w, q.Low52w, q.Position52w)
	}
	if QuoteFromSeries(model.NewSeries("AAPL", nil)) != nil {
		t.Error("expected nil quote for empty series")
	}
}
