// Package middleware contains HTTP middleware and Prometheus instrumentation
package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Total HTTP requests partitioned by method, route, and status code
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// Request duration in seconds partitioned by method, route, and status code
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// In-flight HTTP requests
	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	clicksRegisteredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadbridge_clicks_registered_total",
			Help: "Click registrations partitioned by result",
		},
		[]string{"result"},
	)

	webhookOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadbridge_webhook_outcomes_total",
			Help: "Processed Telegram updates partitioned by outcome",
		},
		[]string{"outcome"},
	)

	conversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadbridge_conversions_total",
			Help: "Conversions API calls partitioned by event and result",
		},
		[]string{"event", "result"},
	)

	botRepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadbridge_bot_replies_total",
			Help: "Bot replies partitioned by kind and result",
		},
		[]string{"kind", "result"},
	)

	webhookQueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadbridge_webhook_queue_dropped_total",
			Help: "Telegram updates dropped because the processing queue was full",
		},
	)

	webhookQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadbridge_webhook_queue_depth",
			Help: "Telegram updates waiting for a worker",
		},
	)
)

// Metrics returns a Fiber v3 middleware that records basic Prometheus metrics.
// Labels are kept low-cardinality by using the matched route path when available.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		status := c.Response().StatusCode()
		method := c.Method()
		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		route = redactBotRoute(route)

		labels := prometheus.Labels{
			"method": method,
			"route":  route,
			"status": strconv.Itoa(status),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())

		return err
	}
}

// redactBotRoute keeps the bot token in the webhook path out of label values
func redactBotRoute(route string) string {
	if len(route) > 4 && route[:4] == "/bot" {
		return "/bot:token"
	}
	return route
}

// MetricsRecorder exposes domain counters to flows and workers
type MetricsRecorder struct{}

func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{}
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (MetricsRecorder) RecordClickRegistered(ok bool) {
	clicksRegisteredTotal.WithLabelValues(resultLabel(ok)).Inc()
}

func (MetricsRecorder) RecordWebhookOutcome(outcome string) {
	webhookOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (MetricsRecorder) RecordConversion(eventName string, sent bool) {
	conversionsTotal.WithLabelValues(eventName, resultLabel(sent)).Inc()
}

func (MetricsRecorder) RecordReply(kind string, ok bool) {
	botRepliesTotal.WithLabelValues(kind, resultLabel(ok)).Inc()
}

func (MetricsRecorder) RecordQueueDropped() {
	webhookQueueDropped.Inc()
}

func (MetricsRecorder) SetQueueDepth(n int) {
	webhookQueueDepth.Set(float64(n))
}
