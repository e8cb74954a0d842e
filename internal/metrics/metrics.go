// Package metrics defines the Prometheus collectors of the screener.
package metrics

import (
	"errors"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "krxvalue"

var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter vectors
var (
	ScreeningsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "screenings_total",
		Help:      "Screening runs by market and outcome",
	}, []string{"market", "outcome"})

	QueryCacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "query_cache_lookups_total",
		Help:      "Query result cache lookups by result (hit, miss)",
	}, []string{"result"})

	SnapshotProbesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_probes_total",
		Help:      "Snapshot date probes by market and outcome (hit, empty, failed)",
	}, []string{"market", "outcome"})

	BacktestRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backtest_runs_total",
		Help:      "Backtest runs by market and status",
	}, []string{"market", "status"})
)

// Histograms
var (
	ScreeningDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "screening_duration_seconds",
		Help:      "Duration of uncached screening runs in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"market"})
)

// InitRegistry initializes the process registry once
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(ScreeningsTotal)
		registry.MustRegister(QueryCacheLookupsTotal)
		registry.MustRegister(SnapshotProbesTotal)
		registry.MustRegister(BacktestRunsTotal)
		registry.MustRegister(ScreeningDuration)
	})
	return registry
}

// Handler returns the /metrics handler
func Handler() http.Handler {
	return promhttp.HandlerFor(InitRegistry(), promhttp.HandlerOpts{})
}

// RecordScreening records a finished screening run.
// outcome is one of: "success", "invalid", "no_data", "error"
func RecordScreening(market, outcome string, durationSeconds float64) {
	ScreeningsTotal.WithLabelValues(market, outcome).Inc()
	if outcome == "success" {
		ScreeningDuration.WithLabelValues(market).Observe(durationSeconds)
	}
}

// RecordCacheLookup records a query cache hit or miss
func RecordCacheLookup(hit bool) {
	if hit {
		QueryCacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	QueryCacheLookupsTotal.WithLabelValues("miss").Inc()
}

// RecordSnapshotProbe records the outcome of one dated snapshot probe
func RecordSnapshotProbe(market, outcome string) {
	SnapshotProbesTotal.WithLabelValues(market, outcome).Inc()
}

// RecordBacktestRun records a per-market backtest run ("success", "failure")
func RecordBacktestRun(market, status string) {
	BacktestRunsTotal.WithLabelValues(market, status).Inc()
}

// RegisterCacheSize exposes size() as krxvalue_cache_entries{cache="<name>"}.
// Registering the same name twice keeps the first collector.
func RegisterCacheSize(name string, size func() int) error {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "cache_entries",
		Help:        "Entries currently held by an in-process cache",
		ConstLabels: prometheus.Labels{"cache": name},
	}, func() float64 { return float64(size()) })

	err := InitRegistry().Register(gauge)
	var dup prometheus.AlreadyRegisteredError
	if errors.As(err, &dup) {
		return nil
	}
	return err
}
