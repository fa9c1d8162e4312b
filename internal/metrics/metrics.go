// Package metrics exposes Prometheus collectors for the HTTP layer and the
// onboarding workflow.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route pattern and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	CandidatesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "candidates_created_total",
		Help: "Partner candidates created, by source and paid status.",
	}, []string{"source", "paid"})

	SeatReservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seat_reservations_total",
		Help: "Seat reservation attempts by result.",
	}, []string{"result"})

	SeatReleases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seat_releases_total",
		Help: "Seat releases after failed creates, by result.",
	}, []string{"result"})

	CSVRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csv_rows_total",
		Help: "Bulk upload rows by outcome.",
	}, []string{"outcome"})

	PostCommitFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "post_commit_task_failures_total",
		Help: "Best-effort follow-up tasks that failed after a candidate was created.",
	}, []string{"task"})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "background_job_runs_total",
		Help: "Background job executions by job and result.",
	}, []string{"job", "result"})
)

const (
	SourceSingle = "single"
	SourceCSV    = "csv"
)

func RecordCandidateCreated(source string, paid bool) {
	CandidatesCreated.WithLabelValues(source, strconv.FormatBool(paid)).Inc()
}
