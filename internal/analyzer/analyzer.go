package analyzer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"QuantSentinel/internal/calculator"
	"QuantSentinel/internal/metrics"
	"QuantSentinel/internal/model"
	"QuantSentinel/internal/strategy"

	"github.com/shopspring/decimal"
)

// MACD modes.
const (
	MACDApprox    = "approx"     // signal = 0.8 × MACD
	MACDSignalEMA = "signal-ema" // signal = EMA(9) of the MACD history
)

// Report periods. The report keys name these periods, so they are fixed.
const (
	smaShort   = 20
	smaLong    = 50
	emaFast    = 12
	emaSlow    = 26
	rsiPeriod  = 14
	macdSignal = 9
	bbPeriod   = 20
	bbK        = 2.0
)

// SnapshotSource returns the current snapshot for a key.
type SnapshotSource interface {
	Get(ctx context.Context, symbol string, kind model.Kind) (*model.Snapshot, error)
}

// Analyzer builds analysis reports from cached price series.
type Analyzer struct {
	cache    SnapshotSource
	macdMode string
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New creates an Analyzer. An empty macdMode uses the approximation.
func New(cache SnapshotSource, macdMode string, m *metrics.Metrics) *Analyzer {
	if macdMode == "" {
		macdMode = MACDApprox
	}
	return &Analyzer{cache: cache, macdMode: macdMode, metrics: m, now: time.Now}
}

// Analyze computes every indicator, the trend and the signal from a single
// snapshot. Indicator failures null that indicator only and are listed in
// the report's Error. The returned error is non-nil only when no price data
// exists; the report is still returned.
func (a *Analyzer) Analyze(ctx context.Context, symbol string) (*model.AnalysisReport, error) {
	start := time.Now()
	defer func() { a.metrics.Analysis(time.Since(start)) }()

	report := model.NewAnalysisReport(symbol, a.now())
	snap, err := a.cache.Get(ctx, symbol, model.KindSeries)
	if err != nil {
		report.Error = "no data"
		return report, err
	}
	report.Source = snap.Source
	if b, ok := snap.Series.Latest(); ok {
		report.DataAsOf = b.Time
	}

	s := snap.Series
	var errs []string
	fail := func(key string, err error) {
		a.metrics.IndicatorError(key)
		errs = append(errs, fmt.Sprintf("%s: %v", key, err))
	}
	value := func(key string, fn func() (decimal.NullDecimal, error)) {
		var v decimal.NullDecimal
		err := guard(func() (err error) {
			v, err = fn()
			return err
		})
		if err != nil {
			fail(key, err)
			return
		}
		report.Indicators[key] = v
	}

	value(model.IndicatorSMA20, func() (decimal.NullDecimal, error) { return calculator.SMA(s, smaShort) })
	value(model.IndicatorSMA50, func() (decimal.NullDecimal, error) { return calculator.SMA(s, smaLong) })
	value(model.IndicatorEMA12, func() (decimal.NullDecimal, error) { return calculator.EMA(s, emaFast) })
	value(model.IndicatorEMA26, func() (decimal.NullDecimal, error) { return calculator.EMA(s, emaSlow) })
	value(model.IndicatorRSI14, func() (decimal.NullDecimal, error) { return calculator.RSI(s, rsiPeriod) })

	var macd model.MACDResult
	if err := guard(func() (err error) {
		macd, err = a.macd(s, report.Value(model.IndicatorEMA12), report.Value(model.IndicatorEMA26))
		return err
	}); err != nil {
		fail(model.IndicatorMACD, err)
	} else if macd.Valid {
		report.Indicators[model.IndicatorMACD] = valid(macd.MACD)
		report.Indicators[model.IndicatorMACDSignal] = valid(macd.Signal)
		report.Indicators[model.IndicatorMACDHistogram] = valid(macd.Histogram)
	}

	var bb model.BollingerResult
	if err := guard(func() (err error) {
		bb, err = calculator.Bollinger(s, bbPeriod, bbK)
		return err
	}); err != nil {
		fail("BB", err)
	} else if bb.Valid {
		report.Indicators[model.IndicatorBBUpper] = valid(bb.Upper)
		report.Indicators[model.IndicatorBBMiddle] = valid(bb.Middle)
		report.Indicators[model.IndicatorBBLower] = valid(bb.Lower)
	}

	d := strategy.Evaluate(
		report.Value(model.IndicatorSMA20),
		report.Value(model.IndicatorSMA50),
		report.Value(model.IndicatorRSI14),
	)
	report.Trend, report.Signal, report.SignalReason = d.Trend, d.Signal, d.Reason

	if len(errs) > 0 {
		report.Error = strings.Join(errs, "; ")
		log.Printf("[WARN] analyze %s: %s", symbol, report.Error)
	}
	return report, nil
}

// macd uses the already computed EMAs in approximation mode.
func (a *Analyzer) macd(s model.Series, fast, slow decimal.NullDecimal) (model.MACDResult, error) {
	if a.macdMode == MACDSignalEMA {
		return calculator.MACDSignalEMA(s, emaFast, emaSlow, macdSignal)
	}
	return calculator.MACDFromLines(fast, slow), nil
}

// guard converts a panic inside fn into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func valid(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// History returns the cached price series.
func (a *Analyzer) History(ctx context.Context, symbol string) (model.Series, error) {
	snap, err := a.cache.Get(ctx, symbol, model.KindSeries)
	if err != nil {
		return model.Series{}, err
	}
	return snap.Series, nil
}

// SMA computes a single simple moving average with a caller-chosen period.
func (a *Analyzer) SMA(ctx context.Context, symbol string, period int) (decimal.NullDecimal, error) {
	s, err := a.History(ctx, symbol)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return calculator.SMA(s, period)
}

func (a *Analyzer) EMA(ctx context.Context, symbol string, period int) (decimal.NullDecimal, error) {
	s, err := a.History(ctx, symbol)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return calculator.EMA(s, period)
}

func (a *Analyzer) RSI(ctx context.Context, symbol string, period int) (decimal.NullDecimal, error) {
	s, err := a.History(ctx, symbol)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return calculator.RSI(s, period)
}

// MACD uses the standard 12/26 periods in the configured mode.
func (a *Analyzer) MACD(ctx context.Context, symbol string) (model.MACDResult, error) {
	s, err := a.History(ctx, symbol)
	if err != nil {
		return model.MACDResult{}, err
	}
	if a.macdMode == MACDSignalEMA {
		return calculator.MACDSignalEMA(s, emaFast, emaSlow, macdSignal)
	}
	return calculator.MACD(s, emaFast, emaSlow)
}

func (a *Analyzer) Bollinger(ctx context.Context, symbol string, period int, k float64) (model.BollingerResult, error) {
	s, err := a.History(ctx, symbol)
	if err != nil {
		return model.BollingerResult{}, err
	}
	return calculator.Bollinger(s, period, k)
}

// Quote returns the latest aggregate quote.
func (a *Analyzer) Quote(ctx context.Context, symbol string) (*model.Quote, error) {
	snap, err := a.cache.Get(ctx, symbol, model.KindQuote)
	if err != nil {
		return nil, err
	}
	return snap.Quote, nil
}
