package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the bot metrics on a private Prometheus registry
type Registry struct {
	reg *prometheus.Registry

	UpdatesTotal        *prometheus.CounterVec
	GuardDecisionsTotal *prometheus.CounterVec
	HandlerErrorsTotal  *prometheus.CounterVec
	StatusChangesTotal  *prometheus.CounterVec
	SignupsTotal        *prometheus.CounterVec
	BroadcastTotal      *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewRegistry creates and registers all metrics
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		UpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inspira_updates_total",
				Help: "Telegram updates received by kind",
			},
			[]string{"kind"},
		),
		GuardDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inspira_guard_decisions_total",
				Help: "Flood guard decisions by verdict",
			},
			[]string{"verdict"},
		),
		HandlerErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inspira_handler_errors_total",
				Help: "Handler failures by handler",
			},
			[]string{"handler"},
		),
		StatusChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inspira_product_status_changes_total",
				Help: "Product status changes by target status",
			},
			[]string{"status"},
		),
		SignupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inspira_signups_total",
				Help: "Class sign-ups by result",
			},
			[]string{"result"},
		),
		BroadcastTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inspira_broadcast_messages_total",
				Help: "Broadcast deliveries by result",
			},
			[]string{"result"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "path"},
		),
	}

	r.reg.MustRegister(
		r.UpdatesTotal,
		r.GuardDecisionsTotal,
		r.HandlerErrorsTotal,
		r.StatusChangesTotal,
		r.SignupsTotal,
		r.BroadcastTotal,
		r.HTTPRequestsTotal,
		r.HTTPRequestDuration,
	)
	return r
}

// Handler serves the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the registry for tests
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// GinMiddleware records HTTP request metrics
func GinMiddleware(r *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())

		r.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		r.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
