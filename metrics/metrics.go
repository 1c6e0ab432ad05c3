// Package metrics registers the Prometheus counters the import worker
// reports. They are served on the health listener's /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WorkerMetrics holds the counters the poll loop and pipeline increment.
type WorkerMetrics struct {
	BatchesClaimed   prometheus.Counter
	BatchesCompleted prometheus.Counter
	BatchesFailed    prometheus.Counter
	ReaperResets     prometheus.Counter
	ReaperFailures   prometheus.Counter
	RowsProcessed    prometheus.Counter
	RowsStaged       prometheus.Counter
	RowsErrored      prometheus.Counter
}

// NewWorkerMetrics creates and registers the worker counters on the given
// registerer. Both main and the tests pass a dedicated prometheus.NewRegistry
// so the health listener serves only these counters and repeated registration
// in tests does not panic.
func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	m := &WorkerMetrics{
		BatchesClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playerimport_batches_claimed_total",
			Help: "Number of batches this worker has claimed.",
		}),
		BatchesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playerimport_batches_completed_total",
			Help: "Number of batches transitioned to staging.",
		}),
		BatchesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playerimport_batches_failed_total",
			Help: "Number of batches this worker transitioned to failed.",
		}),
		ReaperResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playerimport_reaper_resets_total",
			Help: "Stale batches reset to uploaded by the reaper.",
		}),
		ReaperFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playerimport_reaper_failures_total",
			Help: "Stale batches permanently failed by the reaper.",
		}),
		RowsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playerimport_rows_processed_total",
			Help: "CSV data rows read from batch files.",
		}),
		RowsStaged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playerimport_rows_staged_total",
			Help: "Rows that passed validation.",
		}),
		RowsErrored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playerimport_rows_errored_total",
			Help: "Rows that failed validation.",
		}),
	}

	reg.MustRegister(
		m.BatchesClaimed, m.BatchesCompleted, m.BatchesFailed,
		m.ReaperResets, m.ReaperFailures,
		m.RowsProcessed, m.RowsStaged, m.RowsErrored,
	)
	return m
}
