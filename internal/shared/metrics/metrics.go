package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application's Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	QuotaRejectionsTotal *prometheus.CounterVec
	PaymentsTotal        *prometheus.CounterVec
}

// New creates and registers the application metrics.
func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sodam_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sodam_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sodam_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		}),
		QuotaRejectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sodam_quota_rejections_total",
			Help: "Quota gate rejections by resource kind.",
		}, []string{"resource"}),
		PaymentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sodam_payments_total",
			Help: "Payments by provider and outcome.",
		}, []string{"provider", "status"}),
	}
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
