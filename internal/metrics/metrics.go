// Package metrics holds the Prometheus collectors stockbt exports.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for BacktestsTotal.
const (
	OutcomeOK           = "ok"
	OutcomeInvalid      = "invalid"
	OutcomeNoData       = "no_data"
	OutcomeInsufficient = "insufficient_data"
	OutcomeError        = "error"
)

var (
	BacktestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stockbt_backtests_total", Help: "Backtests run, by outcome"},
		[]string{"outcome"},
	)
	BacktestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stockbt_backtest_duration_seconds",
			Help:    "Wall time of successful backtests including data fetch",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)
	BarsFetchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stockbt_bars_fetched_total", Help: "Daily bars returned by market-data providers"},
		[]string{"source"},
	)
	RunsSavedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stockbt_runs_saved_total", Help: "Backtest runs persisted, by result"},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(BacktestsTotal, BacktestDuration, BarsFetchedTotal, RunsSavedTotal)
}

// ObserveBacktest records one backtest attempt.
func ObserveBacktest(outcome string, elapsed time.Duration) {
	BacktestsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		BacktestDuration.Observe(elapsed.Seconds())
	}
}

// ObserveBars counts bars returned by a provider.
func ObserveBars(source string, n int) {
	if n > 0 {
		BarsFetchedTotal.WithLabelValues(source).Add(float64(n))
	}
}

// ObserveSave counts a run persistence attempt.
func ObserveSave(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	RunsSavedTotal.WithLabelValues(result).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
