// Package metrics exposes Prometheus instrumentation for the commission
// engine. The collectors are registered once via promauto and served on a
// dedicated port beside the API.
package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "balance_operation_duration_seconds",
		Help:    "Latency of balance lifecycle operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	ledgerMovesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_moves_total",
		Help: "Total number of balance-affecting ledger operations",
	}, []string{"operation"})

	ledgerMovedAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_moved_amount_total",
		Help: "Total currency amount moved by ledger operations",
	}, []string{"operation"})

	sweepReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "release_sweep_released_total",
		Help: "Total number of commissions released by the sweep",
	})

	sweepConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "release_sweep_conflicts_total",
		Help: "Total number of optimistic transition conflicts during sweeps",
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "balance_errors_total",
		Help: "Total number of balance lifecycle errors",
	}, []string{"operation", "type"})
)

// Collector implements the balance service's MetricsCollector on Prometheus.
type Collector struct{}

func NewCollector() *Collector {
	return &Collector{}
}

func (*Collector) RecordOperationDuration(operation string, duration time.Duration) {
	operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (*Collector) RecordLedgerMove(operation string, amount float64) {
	ledgerMovesTotal.WithLabelValues(operation).Inc()
	ledgerMovedAmount.WithLabelValues(operation).Add(amount)
}

func (*Collector) RecordSweep(released, conflicts int) {
	sweepReleasedTotal.Add(float64(released))
	sweepConflictsTotal.Add(float64(conflicts))
}

func (*Collector) RecordError(operation, errType string) {
	errorsTotal.WithLabelValues(operation, errType).Inc()
}

// Serve exposes /metrics on its own listener so scrapes never contend with
// API traffic. Meant to run in a goroutine; errors are logged, not fatal.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.Printf("Metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("Metrics server stopped: %v", err)
	}
}
