// Package metrics exposes prometheus instruments for the HTTP layer, the
// ingestion path, and the background sweeps.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Module provides the application metrics.
var Module = fx.Module("metrics",
	fx.Provide(New),
)

// Metrics holds the application's prometheus instruments.
type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	readingsIngested *prometheus.CounterVec

	jobRuns     *prometheus.CounterVec
	jobErrors   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
}

// New registers the instruments on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the instruments on the given registerer, so
// tests can use an isolated registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gridora_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridora_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		readingsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gridora_readings_ingested_total",
			Help: "Sensor readings accepted, by ingestion mode.",
		}, []string{"mode"}),
		jobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gridora_scheduler_job_runs_total",
			Help: "Scheduler job invocations.",
		}, []string{"job"}),
		jobErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gridora_scheduler_job_errors_total",
			Help: "Scheduler job failures.",
		}, []string{"job"}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridora_scheduler_job_duration_seconds",
			Help:    "Scheduler job run time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
}

// IncReadingsIngested counts accepted readings. Mode is "single" or "batch".
func (m *Metrics) IncReadingsIngested(mode string, n int) {
	if m == nil {
		return
	}
	m.readingsIngested.WithLabelValues(mode).Add(float64(n))
}

// IncJobRun counts a sweep invocation.
func (m *Metrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// IncJobError counts a sweep failure.
func (m *Metrics) IncJobError(job string) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(job).Inc()
}

// ObserveJobDuration records a sweep's run time.
func (m *Metrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
