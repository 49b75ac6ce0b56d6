package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// metricValue reads a counter or gauge sample from the default registry
func metricValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			if len(m.GetLabel()) != len(labels) {
				continue
			}
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func TestRedactBotRoute(t *testing.T) {
	tests := map[string]string{
		"/bot:token":            "/bot:token",
		"/bot123456:ABC-secret": "/bot:token",
		"/api/init-user":        "/api/init-user",
		"/bot":                  "/bot",
		"/health":               "/health",
	}
	for in, want := range tests {
		assert.Equal(t, want, redactBotRoute(in), in)
	}
}

func TestMetricsMiddlewareRedactsWebhookRoute(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics())
	app.Post("/bot:token", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	labels := map[string]string{"method": http.MethodPost, "route": "/bot:token", "status": "200"}
	before := metricValue(t, "http_requests_total", labels)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/bot123456:ABC-secret", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, before+1, metricValue(t, "http_requests_total", labels))
}

func TestMetricsRecorder(t *testing.T) {
	r := NewMetricsRecorder()

	conv := map[string]string{"event": "Lead", "result": "failure"}
	before := metricValue(t, "leadbridge_conversions_total", conv)
	r.RecordConversion("Lead", false)
	assert.Equal(t, before+1, metricValue(t, "leadbridge_conversions_total", conv))

	outcome := map[string]string{"outcome": "linked"}
	before = metricValue(t, "leadbridge_webhook_outcomes_total", outcome)
	r.RecordWebhookOutcome("linked")
	assert.Equal(t, before+1, metricValue(t, "leadbridge_webhook_outcomes_total", outcome))

	before = metricValue(t, "leadbridge_webhook_queue_dropped_total", map[string]string{})
	r.RecordQueueDropped()
	assert.Equal(t, before+1, metricValue(t, "leadbridge_webhook_queue_dropped_total", map[string]string{}))

	r.SetQueueDepth(7)
	assert.Equal(t, float64(7), metricValue(t, "leadbridge_webhook_queue_depth", map[string]string{}))
}
