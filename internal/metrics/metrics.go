// Package metrics exposes Prometheus instrumentation for the refresh pipeline and its surfaces.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cycle outcomes.
const (
	OutcomePublished = "published"
	OutcomeFailed    = "failed"
	OutcomeStale     = "stale"
)

// Metrics holds all Prometheus metrics for StockWatch. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	CyclesTotal    *prometheus.CounterVec // labels: outcome
	CycleDuration  prometheus.Histogram
	SymbolSwitches prometheus.Counter
	SeriesCandles  prometheus.Gauge
	WSClients      prometheus.Gauge
	AlertsTotal    *prometheus.CounterVec // labels: kind
	ArchivedTotal  prometheus.Counter
}

// New creates the metrics on a private registry, alongside the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockwatch_refresh_cycles_total",
			Help: "Refresh cycles by outcome (published, failed, stale)",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockwatch_refresh_cycle_duration_seconds",
			Help:    "Fetch-to-publish latency of a refresh cycle",
			Buckets: prometheus.DefBuckets,
		}),
		SymbolSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockwatch_symbol_switches_total",
			Help: "Active symbol changes",
		}),
		SeriesCandles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockwatch_series_candles",
			Help: "Candles in the last published snapshot",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockwatch_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockwatch_alerts_total",
			Help: "Signal alerts raised (by kind)",
		}, []string{"kind"}),
		ArchivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockwatch_snapshots_archived_total",
			Help: "Snapshots written to the archive",
		}),
	}
	m.Registry.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.SymbolSwitches,
		m.SeriesCandles,
		m.WSClients,
		m.AlertsTotal,
		m.ArchivedTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveCycle records one finished cycle.
func (m *Metrics) ObserveCycle(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeStale {
		m.CycleDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) SetCandles(n int) {
	if m == nil {
		return
	}
	m.SeriesCandles.Set(float64(n))
}

func (m *Metrics) SymbolSwitched() {
	if m == nil {
		return
	}
	m.SymbolSwitches.Inc()
}

func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.WSClients.Inc()
}

func (m *Metrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.WSClients.Dec()
}

func (m *Metrics) AlertRaised(kind string) {
	if m == nil {
		return
	}
	m.AlertsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) SnapshotArchived() {
	if m == nil {
		return
	}
	m.ArchivedTotal.Inc()
}
