// Package metrics exposes Prometheus collectors for the attendance client.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the client-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "attendance_client",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of backend API requests issued.",
		},
		[]string{"method", "path", "status"},
	)

	apiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "attendance_client",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Duration of backend API requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "path"},
	)

	recognitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "attendance_client",
			Subsystem: "facial",
			Name:      "recognitions_total",
			Help:      "Total number of facial recognition submissions.",
		},
		[]string{"outcome"},
	)

	staleResponses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "attendance_client",
			Subsystem: "state",
			Name:      "stale_responses_total",
			Help:      "Responses discarded because a newer load superseded them.",
		},
	)
)

func init() {
	Registry.MustRegister(
		apiRequests,
		apiDuration,
		recognitions,
		staleResponses,
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one backend API request. A status of 0 marks a
// transport failure with no HTTP response.
func ObserveRequest(method, path string, status int, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	p := canonicalPath(path)
	apiRequests.WithLabelValues(strings.ToUpper(method), p, label).Inc()
	apiDuration.WithLabelValues(strings.ToUpper(method), p).Observe(duration.Seconds())
}

// RecordRecognition records the outcome of a facial recognition submission.
func RecordRecognition(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	recognitions.WithLabelValues(outcome).Inc()
}

// RecordStaleResponse counts a discarded out-of-date store response.
func RecordStaleResponse() {
	staleResponses.Inc()
}

// canonicalPath collapses resource ids so label cardinality stays bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		if _, err := strconv.Atoi(part); err == nil {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}
