// Package metrics exposes Prometheus instruments for units of work, bulk
// imports and throttling. Short-lived processes dump the default registry
// with WriteTextfile for the node exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transaction outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

var (
	transactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recipeshare_transactions_total",
		Help: "Units of work by operation and outcome",
	}, []string{"op", "outcome"})

	transactionRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recipeshare_transaction_retries_total",
		Help: "Units of work rerun after a retryable store error",
	}, []string{"op"})

	transactionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recipeshare_transaction_duration_seconds",
		Help:    "Wall time of a unit of work including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	importRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recipeshare_import_records_total",
		Help: "Records written by bulk imports",
	}, []string{"kind"})

	importSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recipeshare_import_skipped_total",
		Help: "Edges dropped by bulk imports",
	}, []string{"kind"})

	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recipeshare_rate_limited_total",
		Help: "Mutating commands refused by the rate limiter",
	})
)

// RecordTransaction records one finished unit of work.
func RecordTransaction(op, outcome string, elapsed time.Duration) {
	transactionsTotal.WithLabelValues(op, outcome).Inc()
	transactionDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func RecordRetry(op string) {
	transactionRetriesTotal.WithLabelValues(op).Inc()
}

// ImportCounts are the per-kind totals of one import run.
type ImportCounts struct {
	Users          int
	Recipes        int
	Reviews        int
	Follows        int64
	Likes          int64
	Ingredients    int64
	SkippedFollows int
	SkippedLikes   int
}

func RecordImport(c ImportCounts) {
	importRecordsTotal.WithLabelValues("user").Add(float64(c.Users))
	importRecordsTotal.WithLabelValues("recipe").Add(float64(c.Recipes))
	importRecordsTotal.WithLabelValues("review").Add(float64(c.Reviews))
	importRecordsTotal.WithLabelValues("follow").Add(float64(c.Follows))
	importRecordsTotal.WithLabelValues("like").Add(float64(c.Likes))
	importRecordsTotal.WithLabelValues("ingredient").Add(float64(c.Ingredients))
	importSkippedTotal.WithLabelValues("follow").Add(float64(c.SkippedFollows))
	importSkippedTotal.WithLabelValues("like").Add(float64(c.SkippedLikes))
}

func RecordRateLimited() {
	rateLimitedTotal.Inc()
}

// WriteTextfile writes every registered metric to path in the text
// exposition format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
