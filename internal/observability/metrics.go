package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coursepage",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coursepage",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	activePages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "coursepage",
			Subsystem: "pages",
			Name:      "active",
			Help:      "Mounted page instances.",
		},
	)
	commentsPosted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coursepage",
			Subsystem: "comments",
			Name:      "submissions_total",
			Help:      "Comment submissions by result.",
		},
		[]string{"result"},
	)
	snapshotDeliveries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "coursepage",
			Subsystem: "comments",
			Name:      "snapshots_total",
			Help:      "Comment snapshots applied to page feeds.",
		},
	)
	activeSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "coursepage",
			Subsystem: "comments",
			Name:      "subscriptions_active",
			Help:      "Open comment collection subscriptions.",
		},
	)
	activeStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "coursepage",
			Subsystem: "http",
			Name:      "event_streams_active",
			Help:      "Open page event streams.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			activePages,
			commentsPosted,
			snapshotDeliveries,
			activeSubscriptions,
			activeStreams,
		)
	})
}

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, route, statusLabel).Inc()
	httpDuration.WithLabelValues(method, route, statusLabel).Observe(duration.Seconds())
}

// Submission results.
const (
	SubmitPosted   = "posted"
	SubmitRejected = "rejected"
	SubmitFailed   = "failed"
)

func RecordSubmission(result string) {
	RegisterMetrics()
	commentsPosted.WithLabelValues(result).Inc()
}

func RecordSnapshot() {
	RegisterMetrics()
	snapshotDeliveries.Inc()
}

func PageMounted() {
	RegisterMetrics()
	activePages.Inc()
}

func PageUnmounted() {
	RegisterMetrics()
	activePages.Dec()
}

func SubscriptionOpened() {
	RegisterMetrics()
	activeSubscriptions.Inc()
}

func SubscriptionClosed() {
	RegisterMetrics()
	activeSubscriptions.Dec()
}

func StreamOpened() {
	RegisterMetrics()
	activeStreams.Inc()
}

func StreamClosed() {
	RegisterMetrics()
	activeStreams.Dec()
}
