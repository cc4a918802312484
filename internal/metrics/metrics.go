// Package metrics exposes the host's Prometheus metrics: the
// client-facing handler's request counts and latencies, and the fetch
// pipeline's WAL depth, active task count, and synced-to height.
package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the host's Prometheus collectors.
var Registry = prometheus.NewRegistry()

var (
	clientRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kassandra",
			Subsystem: "host",
			Name:      "client_requests_total",
			Help:      "Total number of client connections handled, by message kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	clientRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kassandra",
			Subsystem: "host",
			Name:      "client_request_duration_seconds",
			Help:      "Duration of a single client connection handled end to end.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"kind"},
	)

	fmdTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kassandra",
			Subsystem: "fmd",
			Name:      "ticks_total",
			Help:      "Total number of FMD ticks run against the enclave, by outcome.",
		},
		[]string{"outcome"},
	)

	fmdTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "kassandra",
			Subsystem: "fmd",
			Name:      "tick_duration_seconds",
			Help:      "Duration of a single FMD tick.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	walDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kassandra",
			Subsystem: "fetch",
			Name:      "wal_depth",
			Help:      "Number of fetched transactions buffered but not yet flushed to storage.",
		},
	)

	activeFetchTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kassandra",
			Subsystem: "fetch",
			Name:      "active_tasks",
			Help:      "Number of in-flight block-range fetch tasks.",
		},
	)

	syncedToHeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kassandra",
			Subsystem: "fetch",
			Name:      "synced_to_height",
			Help:      "Highest block height known to be fully fetched and flushed.",
		},
	)
)

func init() {
	Registry.MustRegister(
		clientRequests,
		clientRequestDuration,
		fmdTicks,
		fmdTickDuration,
		walDepth,
		activeFetchTasks,
		syncedToHeight,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// RecordClientRequest records one handled client connection.
func RecordClientRequest(kind, outcome string, duration time.Duration) {
	clientRequests.WithLabelValues(kind, outcome).Inc()
	clientRequestDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordFmdTick records one completed FMD tick, successful or not.
func RecordFmdTick(outcome string, duration time.Duration) {
	fmdTicks.WithLabelValues(outcome).Inc()
	fmdTickDuration.Observe(duration.Seconds())
}

// SetWALDepth reports the fetch pipeline's current buffered-write count.
func SetWALDepth(n int) { walDepth.Set(float64(n)) }

// SetActiveFetchTasks reports the fetch pipeline's current in-flight task count.
func SetActiveFetchTasks(n int) { activeFetchTasks.Set(float64(n)) }

// SetSyncedToHeight reports the highest fully-fetched block height.
func SetSyncedToHeight(h uint64) { syncedToHeight.Set(float64(h)) }

// Router returns a chi.Router exposing /metrics and /healthz, suitable
// for mounting directly or serving standalone on the host's metrics
// listen address.
func Router() chi.Router {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
