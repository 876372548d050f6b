package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hallops"

var (
	once sync.Once

	versionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "version_transitions_total",
			Help:      "Count of draft saves, publishes and rollbacks by document kind.",
		},
		[]string{"kind", "action"},
	)

	shiftSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shift_submissions_total",
			Help:      "Count of accepted MIC shift submissions by status.",
		},
		[]string{"status"},
	)

	shiftRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shift_rejections_total",
			Help:      "Count of rejected shift writes by reason.",
		},
		[]string{"reason"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settings_cache_lookups_total",
			Help:      "Count of settings cache lookups by result.",
		},
		[]string{"result"},
	)

	httpRequests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(versionTransitions, shiftSubmissions, shiftRejections, cacheLookups, httpRequests)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func IncVersionTransition(kind, action string) {
	versionTransitions.WithLabelValues(kind, action).Inc()
}

func IncShiftSubmission(status string) {
	shiftSubmissions.WithLabelValues(status).Inc()
}

func IncShiftRejected(reason string) {
	shiftRejections.WithLabelValues(reason).Inc()
}

func IncCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(result).Inc()
}

func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
