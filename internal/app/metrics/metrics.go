package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "souschef"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total number of local/remote sync runs.",
		},
		[]string{"mode", "success"},
	)

	syncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Duration of sync runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"mode"},
	)

	syncChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "changes_total",
			Help:      "Records written by sync, by collection, target side and action.",
		},
		[]string{"collection", "side", "action"},
	)

	receiptScans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "receipts",
			Name:      "scans_total",
			Help:      "Total number of receipt OCR scans.",
		},
		[]string{"scanner", "success"},
	)

	receiptScanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "receipts",
			Name:      "scan_duration_seconds",
			Help:      "Duration of receipt OCR scans.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"scanner"},
	)

	watchSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "subscribers",
			Help:      "Current number of change subscriptions.",
		},
	)

	watchDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "dropped_events_total",
			Help:      "Change events dropped because a subscriber was not keeping up.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		syncRuns,
		syncDuration,
		syncChanges,
		receiptScans,
		receiptScanDuration,
		watchSubscribers,
		watchDropped,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func IncInFlight() { httpInFlight.Inc() }
func DecInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	method = strings.ToUpper(method)
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSyncRun records a completed sync run.
func RecordSyncRun(mode string, duration time.Duration, success bool) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	syncRuns.WithLabelValues(mode, boolLabel(success)).Inc()
	syncDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordSyncChanges adds n writes of action to collection on side.
func RecordSyncChanges(collection, side, action string, n int) {
	if n <= 0 {
		return
	}
	syncChanges.WithLabelValues(collection, side, action).Add(float64(n))
}

// RecordReceiptScan records an OCR scan attempt.
func RecordReceiptScan(scanner string, duration time.Duration, success bool) {
	if scanner == "" {
		scanner = "unknown"
	}
	receiptScans.WithLabelValues(scanner, boolLabel(success)).Inc()
	receiptScanDuration.WithLabelValues(scanner).Observe(duration.Seconds())
}

func WatchSubscribed()   { watchSubscribers.Inc() }
func WatchUnsubscribed() { watchSubscribers.Dec() }
func WatchDropped()      { watchDropped.Inc() }

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// CanonicalPath collapses identifiers out of request paths that were not
// matched by a router, keeping label cardinality bounded.
func CanonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) == 1 {
		return "/" + parts[0]
	}
	return "/" + parts[0] + "/:id"
}
