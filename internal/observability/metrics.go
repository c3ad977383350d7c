package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	streamEventsTotal     *prometheus.CounterVec
	streamOutcomesTotal   *prometheus.CounterVec
	streamDurationSeconds prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assess_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assess_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assess_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		streamEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assess_stream_events_total",
			Help: "Conversation stream events delivered to clients by type.",
		}, []string{"type"})

		streamOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assess_stream_outcomes_total",
			Help: "Conversation turns by outcome (done, terminated, error, aborted).",
		}, []string{"outcome"})

		streamDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "assess_stream_duration_seconds",
			Help:    "Wall time of conversation turn streams.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			streamEventsTotal,
			streamOutcomesTotal,
			streamDurationSeconds,
		)
	})
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// Latency exposes the latency histogram for API requests.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// Errors exposes the counter for error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// StreamEvents exposes the counter of emitted stream events.
func StreamEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return streamEventsTotal
}

// StreamOutcomes exposes the counter of finished turn streams.
func StreamOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return streamOutcomesTotal
}

// StreamDuration exposes the turn stream duration histogram.
func StreamDuration() prometheus.Histogram {
	RegisterMetrics()
	return streamDurationSeconds
}
