package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the analysis service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	CacheLookups     *prometheus.CounterVec // labels: kind, result=hit|miss|stale|empty
	RefreshTotal     *prometheus.CounterVec // labels: source, outcome=ok|error|timeout|empty
	FetchDur         *prometheus.HistogramVec
	AnalysisDur      prometheus.Histogram
	IndicatorErrors  *prometheus.CounterVec // labels: indicator
	BatchRefreshDur  prometheus.Histogram
	LiveConnected    prometheus.Gauge
	AlertsSent       prometheus.Counter
	handler          http.Handler
}

// New creates all collectors and registers them with reg.
// A nil reg uses a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quant_cache_lookups_total",
			Help: "Freshness cache lookups by kind and result",
		}, []string{"kind", "result"}),
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quant_refresh_total",
			Help: "Upstream refresh attempts by source and outcome",
		}, []string{"source", "outcome"}),
		FetchDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quant_fetch_duration_seconds",
			Help:    "Upstream fetch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		AnalysisDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quant_analysis_duration_seconds",
			Help:    "Full analysis latency including cache lookup",
			Buckets: prometheus.DefBuckets,
		}),
		IndicatorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quant_indicator_errors_total",
			Help: "Indicator computations that failed",
		}, []string{"indicator"}),
		BatchRefreshDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quant_batch_refresh_duration_seconds",
			Help:    "Scheduled batch refresh latency",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		}),
		LiveConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quant_live_source_connected",
			Help: "1 when the live provider reports connected",
		}),
		AlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quant_alerts_sent_total",
			Help: "Signal change alerts delivered",
		}),
	}
	reg.MustRegister(
		m.CacheLookups, m.RefreshTotal, m.FetchDur, m.AnalysisDur,
		m.IndicatorErrors, m.BatchRefreshDur, m.LiveConnected, m.AlertsSent,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.handler = promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	} else {
		m.handler = promhttp.Handler()
	}
	return m
}

// Handler serves the registry the metrics were registered with.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return m.handler
}

func (m *Metrics) CacheLookup(kind, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) Refresh(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(source, outcome).Inc()
	m.FetchDur.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) Analysis(d time.Duration) {
	if m == nil {
		return
	}
	m.AnalysisDur.Observe(d.Seconds())
}

func (m *Metrics) IndicatorError(name string) {
	if m == nil {
		return
	}
	m.IndicatorErrors.WithLabelValues(name).Inc()
}

func (m *Metrics) BatchRefresh(d time.Duration) {
	if m == nil {
		return
	}
	m.BatchRefreshDur.Observe(d.Seconds())
}

func (m *Metrics) SetLiveConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.LiveConnected.Set(1)
	} else {
		m.LiveConnected.Set(0)
	}
}

func (m *Metrics) AlertSent() {
	if m == nil {
		return
	}
	m.AlertsSent.Inc()
}
