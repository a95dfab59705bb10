package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the marketplace service.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	shapedTotal      *prometheus.CounterVec
	shapedItems      *prometheus.HistogramVec
}

// NewMetrics initialises the registry and the service collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketplace_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	upstream := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_upstream_requests_total",
		Help: "Upstream API calls by route and outcome.",
	}, []string{"route", "outcome"})
	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketplace_upstream_request_duration_seconds",
		Help:    "Upstream API call duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	shaped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_listing_shaped_total",
		Help: "Listing shape passes by entity.",
	}, []string{"entity"})
	shapedItems := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketplace_listing_input_records",
		Help:    "Records entering the shaping pipeline per pass.",
		Buckets: []float64{0, 10, 50, 100, 250, 500, 1000},
	}, []string{"entity"})
	registry.MustRegister(requests, duration, upstream, upstreamDuration, shaped, shapedItems)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		upstreamRequests: upstream,
		upstreamDuration: upstreamDuration,
		shapedTotal:      shaped,
		shapedItems:      shapedItems,
	}
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveUpstream records one upstream call.
func (m *Metrics) ObserveUpstream(route, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(route, outcome).Inc()
	m.upstreamDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveShape records one pass of the listing pipeline.
func (m *Metrics) ObserveShape(entity string, records int) {
	if m == nil {
		return
	}
	m.shapedTotal.WithLabelValues(entity).Inc()
	m.shapedItems.WithLabelValues(entity).Observe(float64(records))
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
