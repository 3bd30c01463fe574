package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tomlord1122/todo-store/internal/domain"
)

// Operation results
const (
	ResultOK            = "ok"
	ResultNotFound      = "not_found"
	ResultRecordMissing = "record_missing"
	ResultError         = "error"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	WatchersActive prometheus.Gauge
}

// New registers every metric on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "todo_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "todo_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "todo_store_operations_total",
				Help: "Total number of todo store operations by result",
			},
			[]string{"operation", "result"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "todo_store_operation_duration_seconds",
				Help:    "Todo store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		WatchersActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "todo_watchers_active",
				Help: "Number of connected list watchers",
			},
		),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveOperation records one store operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time, err error) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	m.OperationsTotal.WithLabelValues(operation, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, domain.ErrTodoNotFound):
		return ResultNotFound
	case errors.Is(err, domain.ErrRecordMissing):
		return ResultRecordMissing
	default:
		return ResultError
	}
}

// Middleware records request counts and latency labelled by chi route
// pattern, so ids do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
