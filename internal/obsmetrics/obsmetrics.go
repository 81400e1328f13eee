// Package obsmetrics decorates RPC/REST handlers with request, response,
// and latency counters labeled (endpoint, method, status), per spec §9's
// metrics design note. It replaces the teacher's hand-rolled
// metrics/prometheus_exporter.go text formatter with the real
// prometheus/client_golang library (see DESIGN.md).
package obsmetrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the counters/histogram every handler decorator writes
// to, and exposes a /metrics handler.
type Registry struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	registry *prometheus.Registry
}

// NewRegistry constructs and registers the pipeline's request/latency
// metrics under a fresh prometheus.Registry.
func NewRegistry(namespace string) *Registry {
	reg := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Total requests handled, labeled by endpoint, method, and status.",
	}, []string{"endpoint", "method", "status"})

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "Request latency in seconds, labeled by endpoint, method, and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint", "method", "status"})

	reg.MustRegister(requests, latency)

	return &Registry{requests: requests, latency: latency, registry: reg}
}

// Handler returns the /metrics exposition endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Observe records one completed request against (endpoint, method, status).
func (r *Registry) Observe(endpoint, method string, status int, duration time.Duration) {
	labels := prometheus.Labels{
		"endpoint": endpoint,
		"method":   method,
		"status":   strconv.Itoa(status),
	}
	r.requests.With(labels).Inc()
	r.latency.With(labels).Observe(duration.Seconds())
}

// statusRecorder captures the status code written by an http.Handler, the
// same pattern as the teacher's rpc/middleware.go statusRecorder.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Decorate wraps next with request/response/latency instrumentation for
// the given logical endpoint name.
func (r *Registry) Decorate(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, req)
		r.Observe(endpoint, req.Method, rec.statusCode, time.Since(start))
	})
}
