// Package metrics holds the Prometheus collectors of the client: outbound
// API calls, session teardowns and synchronizer operations.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so several clients (and tests) can
// coexist in one process.
type Recorder struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	teardowns *prometheus.CounterVec
	syncOps   *prometheus.CounterVec
}

// New builds a Recorder with Go runtime collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ticketing_client",
			Name:      "api_requests_total",
			Help:      "Remote API calls by method, route and status (0 = transport failure).",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ticketing_client",
			Name:      "api_request_duration_seconds",
			Help:      "Remote API call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		teardowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ticketing_client",
			Name:      "session_teardowns_total",
			Help:      "Session teardowns by reason.",
		}, []string{"reason"}),
		syncOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ticketing_client",
			Name:      "sync_operations_total",
			Help:      "Synchronizer operations by name and outcome.",
		}, []string{"op", "outcome"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		r.requests, r.latency, r.teardowns, r.syncOps,
	)
	return r
}

// ObserveRequest records one gateway call. path is the concrete request
// path; numeric segments are collapsed so ids do not explode cardinality.
func (r *Recorder) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	route := Route(path)
	r.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.latency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveTeardown records a session teardown.
func (r *Recorder) ObserveTeardown(reason string) {
	if r == nil {
		return
	}
	r.teardowns.WithLabelValues(reason).Inc()
}

// ObserveSync records the outcome of a synchronizer operation.
func (r *Recorder) ObserveSync(op string, ok bool) {
	if r == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	r.syncOps.WithLabelValues(op, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Route replaces numeric path segments with ":id".
func Route(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if s == "" {
			continue
		}
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}
