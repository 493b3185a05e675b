package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(claimsTotal, jobsFinishedTotal, stageLatencyMs, fetchRetriesTotal, downloadBytesTotal)
}

var claimsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "caption_claims_total",
		Help: "Claim attempts by outcome (owned/lost/invalid/unauthorized).",
	},
	[]string{"outcome"},
)

var jobsFinishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "caption_jobs_finished_total",
		Help: "Pipeline runs reaching a terminal state, by status and failing stage.",
	},
	[]string{"status", "stage"}, // stage is "" for completed
)

var stageLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "caption_stage_latency_ms",
		Help:    "Per-stage latency distribution in milliseconds.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 15000, 60000, 300000, 900000},
	},
	[]string{"stage"},
)

var fetchRetriesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "caption_fetch_retries_total",
		Help: "Download attempts that failed and were retried.",
	},
)

var downloadBytesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "caption_download_bytes_total",
		Help: "Total bytes downloaded across all jobs.",
	},
)

func IncClaim(outcome string) {
	claimsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncJobFinished(status, stage string) {
	jobsFinishedTotal.WithLabelValues(norm(status), norm(stage)).Inc()
}

func ObserveStage(stage string, ms int64) {
	stageLatencyMs.WithLabelValues(norm(stage)).Observe(float64(ms))
}

func IncFetchRetry() { fetchRetriesTotal.Inc() }

func AddDownloadBytes(n int64) { downloadBytesTotal.Add(float64(n)) }
