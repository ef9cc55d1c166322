package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exported by the service.
type Metrics struct {
	registry *prometheus.Registry

	corrections       *prometheus.CounterVec
	correctionLatency prometheus.Histogram
	requests          *prometheus.CounterVec
	requestLatency    *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		corrections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cypherguard_corrections_total",
			Help: "Cypher corrections by outcome and whether the query was rewritten",
		}, []string{"outcome", "changed"}),
		correctionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cypherguard_correction_duration_seconds",
			Help:    "Cypher correction duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14), // 10us to ~80ms
		}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cypherguard_http_requests_total",
			Help: "HTTP requests by path and status code",
		}, []string{"path", "status"}),
		requestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cypherguard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
	}
}

// ObserveCorrection implements cypher.Recorder.
func (m *Metrics) ObserveCorrection(outcome string, changed bool, elapsed time.Duration) {
	m.corrections.WithLabelValues(outcome, strconv.FormatBool(changed)).Inc()
	m.correctionLatency.Observe(elapsed.Seconds())
}

// ObserveRequest records a completed HTTP request.
func (m *Metrics) ObserveRequest(path string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(path, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(path).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
