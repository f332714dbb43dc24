// Package metrics holds the Prometheus collectors of the API. They are served by the debug server.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "admissions"

// Upload row outcomes.
const (
	OutcomeInserted  = "inserted"
	OutcomeInvalid   = "invalid"
	OutcomeDuplicate = "duplicate"
)

// Shortlist run results.
const (
	ResultCreated  = "created"
	ResultConflict = "conflict"
	ResultInvalid  = "invalid"
	ResultError    = "error"
)

var (
	uploadRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upload_rows_total",
		Help:      "Bulk upload rows by outcome.",
	}, []string{"outcome"})

	uploadRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upload_runs_total",
		Help:      "Bulk upload runs by failure status.",
	}, []string{"failed"})

	shortlistRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "shortlist_runs_total",
		Help:      "Shortlist generation requests by result.",
	}, []string{"result"})

	shortlistDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "shortlist_duration_seconds",
		Help:      "Time spent generating a shortlist.",
		Buckets:   prometheus.DefBuckets,
	})

	shortlistSelected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "shortlist_selected_total",
		Help:      "Applicants selected by shortlist generation.",
	})
)

// ObserveUpload records the row outcomes of one upload run.
func ObserveUpload(inserted, invalid, duplicate int, failed bool) {
	uploadRows.WithLabelValues(OutcomeInserted).Add(float64(inserted))
	uploadRows.WithLabelValues(OutcomeInvalid).Add(float64(invalid))
	uploadRows.WithLabelValues(OutcomeDuplicate).Add(float64(duplicate))
	uploadRuns.WithLabelValues(strconv.FormatBool(failed)).Inc()
}

// ObserveShortlist records one shortlist request that started at start.
func ObserveShortlist(result string, selected int, start time.Time) {
	shortlistRuns.WithLabelValues(result).Inc()
	shortlistDuration.Observe(time.Since(start).Seconds())
	if selected > 0 {
		shortlistSelected.Add(float64(selected))
	}
}
