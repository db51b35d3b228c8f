package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"QuantSentinel/internal/apperrors"
	"QuantSentinel/internal/collector"
	"QuantSentinel/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// Analyst serves reports and single indicators from cached data.
type Analyst interface {
	Analyze(ctx context.Context, symbol string) (*model.AnalysisReport, error)
	SMA(ctx context.Context, symbol string, period int) (decimal.NullDecimal, error)
	EMA(ctx context.Context, symbol string, period int) (decimal.NullDecimal, error)
	RSI(ctx context.Context, symbol string, period int) (decimal.NullDecimal, error)
	MACD(ctx context.Context, symbol string) (model.MACDResult, error)
	Bollinger(ctx context.Context, symbol string, period int, k float64) (model.BollingerResult, error)
	Quote(ctx context.Context, symbol string) (*model.Quote, error)
	History(ctx context.Context, symbol string) (model.Series, error)
}

// Refresher forces a refetch of one key.
type Refresher interface {
	Refresh(ctx context.Context, symbol string, kind model.Kind) (*model.Snapshot, error)
}

// HistoryStore exposes the local history database.
type HistoryStore interface {
	IsConnected() bool
	ActiveSymbols(ctx context.Context) ([]string, error)
	RecentRefreshes(ctx context.Context, symbol string, limit int) ([]model.RefreshEvent, error)
}

// BatchTrigger starts a background refresh of a symbol list and returns its run id.
type BatchTrigger interface {
	Trigger(symbols []string) string
	Symbols(ctx context.Context) []string // the watch list
}

// Defaults are the periods used when a per-indicator request omits them.
type Defaults struct {
	SMAPeriod       int
	EMAPeriod       int
	RSIPeriod       int
	BollingerPeriod int
	BollingerStdDev float64
}

// Handler serves the REST API.
type Handler struct {
	Analyst        Analyst
	Refresher      Refresher
	History        HistoryStore
	Live           collector.Connector // nil when no live backend is configured
	Batch          BatchTrigger        // nil disables batch-update
	Defaults       Defaults
	ConnectTimeout time.Duration
}

func symbolParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// fail maps an error onto a status code.
func fail(w http.ResponseWriter, symbol string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNoData):
		RespondError(w, http.StatusNotFound, "no data", symbol)
	case errors.Is(err, apperrors.ErrInvalidPeriod), errors.Is(err, apperrors.ErrInvalidSymbol):
		RespondError(w, http.StatusBadRequest, err.Error(), symbol)
	case errors.Is(err, apperrors.ErrSourceUnavailable), errors.Is(err, apperrors.ErrFetchTimeout),
		errors.Is(err, apperrors.ErrEmptyResult), errors.Is(err, apperrors.ErrNotConnected):
		RespondError(w, http.StatusServiceUnavailable, "source unavailable", err.Error())
	default:
		log.Printf("[ERROR] %s: %v", symbol, err)
		RespondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

// Analysis handles GET /api/analysis/{symbol}.
func (h *Handler) Analysis(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	report, err := h.Analyst.Analyze(r.Context(), symbol)
	if err != nil {
		fail(w, symbol, err)
		return
	}
	RespondJSON(w, http.StatusOK, report)
}

type indicatorResponse struct {
	Symbol    string      `json:"symbol"`
	Indicator string      `json:"indicator"`
	Period    int         `json:"period"`
	Value     json.Number `json:"value"`
}

func (h *Handler) single(name string, def int, fn func(context.Context, string, int) (decimal.NullDecimal, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := symbolParam(r)
		period, err := intParam(r, "period", def)
		if err != nil {
			RespondError(w, http.StatusBadRequest, "invalid period", err.Error())
			return
		}
		v, err := fn(r.Context(), symbol, period)
		if err != nil {
			fail(w, symbol, err)
			return
		}
		if !v.Valid {
			RespondError(w, http.StatusNotFound, apperrors.ErrInsufficientData.Error(), symbol)
			return
		}
		RespondJSON(w, http.StatusOK, indicatorResponse{Symbol: symbol, Indicator: name, Period: period, Value: number(v.Decimal)})
	}
}

// SMA handles GET /api/analysis/{symbol}/sma?period=.
func (h *Handler) SMA(w http.ResponseWriter, r *http.Request) {
	h.single("SMA", h.Defaults.SMAPeriod, h.Analyst.SMA)(w, r)
}

// EMA handles GET /api/analysis/{symbol}/ema?period=.
func (h *Handler) EMA(w http.ResponseWriter, r *http.Request) {
	h.single("EMA", h.Defaults.EMAPeriod, h.Analyst.EMA)(w, r)
}

// RSI handles GET /api/analysis/{symbol}/rsi?period=.
func (h *Handler) RSI(w http.ResponseWriter, r *http.Request) {
	h.single("RSI", h.Defaults.RSIPeriod, h.Analyst.RSI)(w, r)
}

// MACD handles GET /api/analysis/{symbol}/macd.
func (h *Handler) MACD(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	m, err := h.Analyst.MACD(r.Context(), symbol)
	if err != nil {
		fail(w, symbol, err)
		return
	}
	if !m.Valid {
		RespondError(w, http.StatusNotFound, apperrors.ErrInsufficientData.Error(), symbol)
		return
	}
	RespondJSON(w, http.StatusOK, numbers(m.Map()))
}

// Bollinger handles GET /api/analysis/{symbol}/bollinger?period=&stdDev=.
func (h *Handler) Bollinger(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	period, err := intParam(r, "period", h.Defaults.BollingerPeriod)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "invalid period", err.Error())
		return
	}
	k := h.Defaults.BollingerStdDev
	if v := r.URL.Query().Get("stdDev"); v != "" {
		if k, err = strconv.ParseFloat(v, 64); err != nil || k <= 0 || math.IsNaN(k) || math.IsInf(k, 0) {
			RespondError(w, http.StatusBadRequest, "invalid stdDev", v)
			return
		}
	}
	bb, err := h.Analyst.Bollinger(r.Context(), symbol, period, k)
	if err != nil {
		fail(w, symbol, err)
		return
	}
	if !bb.Valid {
		RespondError(w, http.StatusNotFound, apperrors.ErrInsufficientData.Error(), symbol)
		return
	}
	RespondJSON(w, http.StatusOK, numbers(bb.Map()))
}

// Refreshes handles GET /api/analysis/{symbol}/refreshes?limit=.
func (h *Handler) Refreshes(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	limit, err := intParam(r, "limit", 20)
	if err != nil || limit <= 0 {
		RespondError(w, http.StatusBadRequest, "invalid limit", r.URL.Query().Get("limit"))
		return
	}
	events, err := h.History.RecentRefreshes(r.Context(), symbol, limit)
	if err != nil {
		fail(w, symbol, err)
		return
	}
	if events == nil {
		events = []model.RefreshEvent{}
	}
	RespondJSON(w, http.StatusOK, events)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string `json:"status"`
	History       string `json:"history"`
	LiveConnected bool   `json:"liveConnected"`
}

// Health handles GET /api/analysis/health. A disconnected live source is
// reported but does not make the service unhealthy.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", History: "connected"}
	if h.Live != nil {
		resp.LiveConnected = h.Live.Status().Connected
	}
	if !h.History.IsConnected() {
		resp.Status, resp.History = "unhealthy", "disconnected"
		RespondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	RespondJSON(w, http.StatusOK, resp)
}

// SourceStatus handles GET /api/analysis/source/status.
func (h *Handler) SourceStatus(w http.ResponseWriter, r *http.Request) {
	if h.Live == nil {
		RespondJSON(w, http.StatusOK, collector.Status{Source: "none"})
		return
	}
	RespondJSON(w, http.StatusOK, h.Live.Status())
}

// SourceConnect handles POST /api/analysis/source/connect.
func (h *Handler) SourceConnect(w http.ResponseWriter, r *http.Request) {
	if h.Live == nil {
		RespondError(w, http.StatusBadRequest, "no live source configured", nil)
		return
	}
	ctx := r.Context()
	if h.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.ConnectTimeout)
		defer cancel()
	}
	if err := h.Live.Connect(ctx); err != nil {
		log.Printf("[WARN] live connect failed: %v", err)
		RespondJSON(w, http.StatusServiceUnavailable, h.Live.Status())
		return
	}
	RespondJSON(w, http.StatusOK, h.Live.Status())
}

// Stock handles GET /api/stocks/{symbol}.
func (h *Handler) Stock(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	q, err := h.Analyst.Quote(r.Context(), symbol)
	if err != nil {
		fail(w, symbol, err)
		return
	}
	RespondJSON(w, http.StatusOK, q)
}

// StockHistory handles GET /api/stocks/{symbol}/history.
func (h *Handler) StockHistory(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	s, err := h.Analyst.History(r.Context(), symbol)
	if err != nil {
		fail(w, symbol, err)
		return
	}
	RespondJSON(w, http.StatusOK, s)
}

// RefreshStock handles POST /api/stocks/{symbol}/refresh: it refetches the
// series and the quote and returns the new quote.
func (h *Handler) RefreshStock(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	if _, err := h.Refresher.Refresh(r.Context(), symbol, model.KindSeries); err != nil {
		fail(w, symbol, err)
		return
	}
	snap, err := h.Refresher.Refresh(r.Context(), symbol, model.KindQuote)
	if err != nil {
		fail(w, symbol, err)
		return
	}
	RespondJSON(w, http.StatusOK, snap.Quote)
}

// Symbols handles GET /api/stocks/symbols.
func (h *Handler) Symbols(w http.ResponseWriter, r *http.Request) {
	syms, err := h.History.ActiveSymbols(r.Context())
	if err != nil {
		fail(w, "", err)
		return
	}
	if syms == nil {
		syms = []string{}
	}
	RespondJSON(w, http.StatusOK, syms)
}

type batchResponse struct {
	RunID   string   `json:"runId"`
	Symbols []string `json:"symbols"`
}

type batchRequest struct {
	Symbols []string `json:"symbols"`
}

// BatchUpdate handles POST /api/stocks/batch-update with {"symbols": [...]}.
// An empty list refreshes the whole watch list. The refresh runs in the background.
func (h *Handler) BatchUpdate(w http.ResponseWriter, r *http.Request) {
	if h.Batch == nil {
		RespondError(w, http.StatusServiceUnavailable, "batch refresh disabled", nil)
		return
	}
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	var syms []string
	for _, s := range req.Symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			syms = append(syms, s)
		}
	}
	if len(syms) == 0 {
		syms = h.Batch.Symbols(r.Context())
	}
	if syms == nil {
		syms = []string{}
	}
	RespondJSON(w, http.StatusAccepted, batchResponse{RunID: h.Batch.Trigger(syms), Symbols: syms})
}
