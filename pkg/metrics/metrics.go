package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Evaluation metrics
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sidecar_evaluations_total",
			Help: "Total number of flag evaluations by namespace and result path",
		},
		[]string{"namespace", "path"},
	)

	EvaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sidecar_evaluation_duration_seconds",
			Help:    "Time taken to evaluate a single flag in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"namespace"},
	)

	EvaluationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sidecar_evaluation_errors_total",
			Help: "Total number of flag evaluation errors by kind",
		},
		[]string{"kind"},
	)

	// Config store metrics
	StoreRefreshDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sidecar_store_refresh_duration_seconds",
			Help:    "Time taken to load and swap a repository snapshot in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	StoreRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sidecar_store_refresh_total",
			Help: "Total number of store refresh attempts by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	StoreFlagsLoaded = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sidecar_store_flags_loaded",
			Help: "Number of flags currently held in the active snapshot, by namespace",
		},
		[]string{"namespace"},
	)

	StoreGeneration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sidecar_store_active_generation",
			Help: "Generation counter of the active snapshot (monotonic, bumped on every successful swap)",
		},
	)

	// Poller / watcher metrics
	PollCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sidecar_poll_cycles_total",
			Help: "Total number of remote poll cycles by outcome",
		},
		[]string{"outcome"},
	)

	WatchCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sidecar_watch_cycles_total",
			Help: "Total number of filesystem watch cycles by outcome",
		},
		[]string{"outcome"},
	)

	// Metrics pipeline metrics
	MetricsQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sidecar_metrics_queue_depth",
			Help: "Current number of flag evaluation events buffered in the ingress channel",
		},
	)

	MetricsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sidecar_metrics_dropped_total",
			Help: "Total number of flag evaluation events dropped because the ingress channel was full",
		},
	)

	MetricsBatchesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sidecar_metrics_batches_sent_total",
			Help: "Total number of flag evaluation event batches sent to the backend by outcome",
		},
		[]string{"outcome"},
	)

	MetricsFlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sidecar_metrics_flush_duration_seconds",
			Help:    "Time taken to send one batch of flag evaluation events in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RPC surface metrics
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sidecar_rpc_requests_total",
			Help: "Total number of host-facing RPC requests by method and status",
		},
		[]string{"method", "status"},
	)

	RPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sidecar_rpc_request_duration_seconds",
			Help:    "Host-facing RPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		EvaluationsTotal,
		EvaluationDuration,
		EvaluationErrorsTotal,
		StoreRefreshDuration,
		StoreRefreshTotal,
		StoreFlagsLoaded,
		StoreGeneration,
		PollCyclesTotal,
		WatchCyclesTotal,
		MetricsQueueDepth,
		MetricsDroppedTotal,
		MetricsBatchesSentTotal,
		MetricsFlushDuration,
		RPCRequestsTotal,
		RPCRequestDuration,
	)
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer starting now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
