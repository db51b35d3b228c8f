package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"QuantSentinel/internal/analyzer"
	"QuantSentinel/internal/apperrors"
	"QuantSentinel/internal/collector"
	"QuantSentinel/internal/model"
)

type fakeCache struct {
	series    map[string]model.Series
	refreshed []string
	failWith  error
}

func (c *fakeCache) Get(_ context.Context, symbol string, kind model.Kind) (*model.Snapshot, error) {
	s, ok := c.series[symbol]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", kind, symbol, apperrors.ErrNoData)
	}
	snap := &model.Snapshot{Symbol: symbol, Kind: kind, Source: "simulated", Series: s}
	if kind == model.KindQuote {
		snap.Quote = collector.QuoteFromSeries(s)
	}
	return snap, nil
}

func (c *fakeCache) Refresh(ctx context.Context, symbol string, kind model.Kind) (*model.Snapshot, error) {
	if c.failWith != nil {
		return nil, c.failWith
	}
	c.refreshed = append(c.refreshed, string(kind)+":"+symbol)
	return c.Get(ctx, symbol, kind)
}

type fakeHistory struct {
	down   bool
	events []model.RefreshEvent
}

func (f *fakeHistory) IsConnected() bool { return !f.down }
func (f *fakeHistory) ActiveSymbols(context.Context) ([]string, error) {
	return []string{"AAPL"}, nil
}
func (f *fakeHistory) RecentRefreshes(_ context.Context, symbol string, limit int) ([]model.RefreshEvent, error) {
	var out []model.RefreshEvent
	for _, ev := range f.events {
		if ev.Symbol == symbol && len(out) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

type fakeLive struct {
	up  bool
	err error
}

func (f *fakeLive) Connect(context.Context) error {
	if f.err == nil {
		f.up = true
	}
	return f.err
}
func (f *fakeLive) Status() collector.Status { return collector.Status{Source: "gateway", Connected: f.up} }

type fakeBatch struct {
	got     []string
	watched []string
}

func (f *fakeBatch) Trigger(symbols []string) string {
	f.got = symbols
	return "run-1"
}

func (f *fakeBatch) Symbols(context.Context) []string { return f.watched }

func rising(symbol string, n int) model.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.PriceBar, n)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = model.PriceBar{Time: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return model.NewSeries(symbol, bars)
}

type testEnv struct {
	router  http.Handler
	cache   *fakeCache
	history *fakeHistory
	live    *fakeLive
	batch   *fakeBatch
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		cache:   &fakeCache{series: map[string]model.Series{"AAPL": rising("AAPL", 60), "NEW": rising("NEW", 5)}},
		history: &fakeHistory{},
		live:    &fakeLive{},
		batch:   &fakeBatch{},
	}
	h := &Handler{
		Analyst:   analyzer.New(env.cache, "", nil),
		Refresher: env.cache,
		History:   env.history,
		Live:      env.live,
		Batch:     env.batch,
		Defaults:  Defaults{SMAPeriod: 20, EMAPeriod: 12, RSIPeriod: 14, BollingerPeriod: 20, BollingerStdDev: 2},
	}
	env.router = NewRouter(h, []string{"*"}, http.NotFoundHandler())
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(w.Body).Decode(&m); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return m
}

func TestAnalysisEndpoint(t *testing.T) {
	env := setup(t)

	t.Run("report for known symbol, case-insensitive", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/analysis/aapl", "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		m := decode(t, w)
		if m["symbol"] != "AAPL" || m["SMA_20"] != 149.5 || m["tradingSignal"] != "SELL" {
			t.Errorf("unexpected report %v", m)
		}
	})

	t.Run("unknown symbol is 404", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/analysis/ZZZZ", "")
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})
}

func TestIndicatorEndpoints(t *testing.T) {
	env := setup(t)
	tests := []struct {
		path string
		code int
	}{
		{"/api/analysis/AAPL/sma", http.StatusOK},
		{"/api/analysis/AAPL/sma?period=5", http.StatusOK},
		{"/api/analysis/AAPL/sma?period=abc", http.StatusBadRequest},
		{"/api/analysis/AAPL/sma?period=0", http.StatusBadRequest},
		{"/api/analysis/AAPL/ema?period=200", http.StatusOK},
		{"/api/analysis/NEW/rsi", http.StatusNotFound},
		{"/api/analysis/AAPL/rsi?period=-3", http.StatusBadRequest},
		{"/api/analysis/AAPL/rsi?period=9223372036854775807", http.StatusNotFound},
		{"/api/analysis/AAPL/sma?period=9223372036854775807", http.StatusNotFound},
		{"/api/analysis/AAPL/macd", http.StatusOK},
		{"/api/analysis/AAPL/bollinger?period=10&stdDev=1.5", http.StatusOK},
		{"/api/analysis/AAPL/bollinger?stdDev=-1", http.StatusBadRequest},
		{"/api/analysis/AAPL/bollinger?stdDev=NaN", http.StatusBadRequest},
		{"/api/analysis/AAPL/bollinger?stdDev=Inf", http.StatusBadRequest},
		{"/api/analysis/AAPL/bollinger?stdDev=-Inf", http.StatusBadRequest},
		{"/api/analysis/NEW/bollinger", http.StatusNotFound},
		{"/api/analysis/ZZZZ/macd", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.path, "")
			if w.Code != tt.code {
				t.Errorf("expected %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
		})
	}

	w := env.do(t, http.MethodGet, "/api/analysis/AAPL/sma?period=5", "")
	m := decode(t, w)
	if m["value"] != 157.0 || m["period"] != 5.0 {
		t.Errorf("unexpected SMA body %v", m)
	}
	w = env.do(t, http.MethodGet, "/api/analysis/NEW/rsi", "")
	if m := decode(t, w); m["error"] != "insufficient data" {
		t.Errorf("unexpected null-value body %v", m)
	}
	w = env.do(t, http.MethodGet, "/api/analysis/AAPL/macd", "")
	if m := decode(t, w); len(m) != 3 || m["MACD"] == nil {
		t.Errorf("unexpected MACD body %v", m)
	}
}

func TestSourceEndpoints(t *testing.T) {
	env := setup(t)

	m := decode(t, env.do(t, http.MethodGet, "/api/analysis/source/status", ""))
	if m["connected"] != false || m["source"] != "gateway" {
		t.Errorf("unexpected status %v", m)
	}
	w := env.do(t, http.MethodPost, "/api/analysis/source/connect", "")
	if w.Code != http.StatusOK || decode(t, w)["connected"] != true {
		t.Errorf("expected successful connect, got %d", w.Code)
	}

	env.live.up, env.live.err = false, fmt.Errorf("refused")
	if w := env.do(t, http.MethodPost, "/api/analysis/source/connect", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 on failed connect, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	env := setup(t)
	if w := env.do(t, http.MethodGet, "/api/analysis/health", ""); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	env.history.down = true
	w := env.do(t, http.MethodGet, "/api/analysis/health", "")
	if w.Code != http.StatusServiceUnavailable || decode(t, w)["history"] != "disconnected" {
		t.Errorf("expected 503 with disconnected history, got %d", w.Code)
	}
}

func TestStockEndpoints(t *testing.T) {
	env := setup(t)

	m := decode(t, env.do(t, http.MethodGet, "/api/stocks/AAPL", ""))
	if m["currentPrice"] != 159.0 || m["previousClose"] != 158.0 {
		t.Errorf("unexpected quote %v", m)
	}
	if w := env.do(t, http.MethodGet, "/api/stocks/ZZZZ", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	w := env.do(t, http.MethodGet, "/api/stocks/NEW/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if bars := decode(t, w)["bars"].([]any); len(bars) != 5 {
		t.Errorf("expected 5 bars, got %d", len(bars))
	}

	w = env.do(t, http.MethodPost, "/api/stocks/aapl/refresh", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(env.cache.refreshed) != 2 || env.cache.refreshed[0] != "series:AAPL" || env.cache.refreshed[1] != "quote:AAPL" {
		t.Errorf("unexpected refreshes %v", env.cache.refreshed)
	}

	for _, cause := range []error{apperrors.ErrSourceUnavailable, apperrors.ErrNotConnected} {
		env.cache.failWith = fmt.Errorf("gateway: %w", cause)
		if w := env.do(t, http.MethodPost, "/api/stocks/AAPL/refresh", ""); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%v: expected 503, got %d", cause, w.Code)
		}
	}
	env.cache.failWith = nil

	var syms []string
	json.NewDecoder(env.do(t, http.MethodGet, "/api/stocks/symbols", "").Body).Decode(&syms)
	if len(syms) != 1 || syms[0] != "AAPL" {
		t.Errorf("unexpected symbols %v", syms)
	}
}

func TestBatchUpdate(t *testing.T) {
	env := setup(t)
	env.batch.watched = []string{"AAPL", "NVDA", "TSLA"}

	tests := []struct {
		name string
		body string
		want []string
	}{
		{"explicit symbols", `{"symbols": ["aapl", " msft ", ""]}`, []string{"AAPL", "MSFT"}},
		{"empty list uses watch list", `{"symbols": []}`, []string{"AAPL", "NVDA", "TSLA"}},
		{"blank symbols use watch list", `{"symbols": [" "]}`, []string{"AAPL", "NVDA", "TSLA"}},
		{"missing field uses watch list", `{}`, []string{"AAPL", "NVDA", "TSLA"}},
		{"no body uses watch list", ``, []string{"AAPL", "NVDA", "TSLA"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.batch.got = nil
			w := env.do(t, http.MethodPost, "/api/stocks/batch-update", tt.body)
			if w.Code != http.StatusAccepted {
				t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
			}
			if m := decode(t, w); m["runId"] != "run-1" || len(m["symbols"].([]any)) != len(tt.want) {
				t.Errorf("unexpected body %v", m)
			}
			if strings.Join(env.batch.got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("triggered %v, want %v", env.batch.got, tt.want)
			}
		})
	}

	for _, body := range []string{`{`, `["AAPL"]`, `{"symbols": "AAPL"}`} {
		if w := env.do(t, http.MethodPost, "/api/stocks/batch-update", body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, w.Code)
		}
	}
}

func TestRefreshesEndpoint(t *testing.T) {
	env := setup(t)
	env.history.events = []model.RefreshEvent{
		{Symbol: "AAPL", Kind: model.KindSeries, Source: "gateway", OK: true, Bars: 60},
		{Symbol: "MSFT", Kind: model.KindSeries, Source: "gateway"},
	}

	w := env.do(t, http.MethodGet, "/api/analysis/AAPL/refreshes?limit=5", "")
	var events []model.RefreshEvent
	if err := json.NewDecoder(w.Body).Decode(&events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Bars != 60 {
		t.Errorf("unexpected events %+v", events)
	}
	if w := env.do(t, http.MethodGet, "/api/analysis/AAPL/refreshes?limit=0", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := setup(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/analysis/AAPL", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS headers on preflight")
	}
}
