package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Placement attempts by gateway and result (placed, provider_error, rejected).
	CallsPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialer_calls_placed_total",
			Help: "Total number of call placement attempts",
		},
		[]string{"gateway", "result"},
	)

	// Scheduler gate decisions (scheduled, not_active, daily_limit, outside_window, error).
	ScheduleDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialer_schedule_decisions_total",
			Help: "Total number of schedule decisions by outcome",
		},
		[]string{"outcome"},
	)

	// Batch and retry run durations.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dialer_run_duration_seconds",
			Help:    "Duration of dispatch and retry runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"kind"},
	)

	// Provider webhooks by result (applied, duplicate, unknown_call, unknown_status, invalid, error).
	WebhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialer_webhooks_total",
			Help: "Total number of provider webhooks received",
		},
		[]string{"kind", "result"},
	)

	// Dispatch jobs consumed from the queue.
	JobsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialer_jobs_consumed_total",
			Help: "Total number of queued dispatch jobs consumed",
		},
		[]string{"kind", "status"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

func RecordCallPlaced(gateway, result string) {
	CallsPlaced.WithLabelValues(gateway, result).Inc()
}

func RecordScheduleDecision(outcome string) {
	ScheduleDecisions.WithLabelValues(outcome).Inc()
}

func RecordRunDuration(kind string, d time.Duration) {
	RunDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func IncrementWebhook(kind, result string) {
	WebhooksReceived.WithLabelValues(kind, result).Inc()
}

func IncrementJobConsumed(kind, status string) {
	JobsConsumed.WithLabelValues(kind, status).Inc()
}

// Middleware records request counts and latencies per matched route.
// The route template keeps label cardinality low.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		labels := prometheus.Labels{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
