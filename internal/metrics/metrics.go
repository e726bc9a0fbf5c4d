// Package metrics provides Prometheus metrics for monitoring fetch batches, store writes and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSucceeded   = "succeeded"
	OutcomeFailed      = "failed"
	OutcomeRateLimited = "rate_limited"
)

var (
	FetchTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitsync_fetch_tasks_total",
			Help: "Total number of per-day fetch tasks finished, by outcome",
		},
		[]string{"outcome"},
	)
	FetchTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fitsync_fetch_task_duration_seconds",
			Help:    "Per-day fetch task duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"outcome"},
	)
	FetchTasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fitsync_fetch_tasks_in_flight",
			Help: "Number of per-day fetch tasks currently running",
		},
	)
	FetchBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitsync_fetch_batches_total",
			Help: "Total number of fetch batches finished, by outcome",
		},
		[]string{"outcome"},
	)
	FetchBatchDays = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fitsync_fetch_batch_days",
			Help:    "Number of days requested per fetch batch",
			Buckets: []float64{1, 7, 14, 31, 62, 100},
		},
	)
	StoreUpsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitsync_store_upserts_total",
			Help: "Total number of per-date upserts, by table and status",
		},
		[]string{"table", "status"},
	)
	MonthViewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitsync_month_views_total",
			Help: "Total number of month views built, by outcome",
		},
		[]string{"outcome"},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitsync_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fitsync_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func RecordTaskStarted() {
	FetchTasksInFlight.Inc()
}

func RecordTaskFinished(outcome string, duration time.Duration) {
	FetchTasksInFlight.Dec()
	FetchTasksTotal.WithLabelValues(outcome).Inc()
	FetchTaskDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func RecordBatchSubmitted(days int) {
	FetchBatchDays.Observe(float64(days))
}

func RecordBatchFinished(outcome string) {
	FetchBatchesTotal.WithLabelValues(outcome).Inc()
}

func RecordUpsert(table string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StoreUpsertsTotal.WithLabelValues(table, status).Inc()
}

func RecordMonthView(outcome string) {
	MonthViewsTotal.WithLabelValues(outcome).Inc()
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
