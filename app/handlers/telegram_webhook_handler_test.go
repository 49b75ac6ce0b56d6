package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/amirphl/leadbridge/app/dto"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookBotToken = "123456:ABC-DEF_ghi"

type recordingEnqueuer struct {
	mu      sync.Mutex
	updates []*dto.TelegramUpdate
	accept  bool
}

func (r *recordingEnqueuer) Enqueue(update *dto.TelegramUpdate) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
	return r.accept
}

func newWebhookTestApp(q UpdateEnqueuer, secret string) *fiber.App {
	app := fiber.New()
	app.Post("/bot:token", NewTelegramWebhookHandler(q, webhookBotToken, secret).Webhook)
	return app
}

func sendWebhook(t *testing.T, app *fiber.App, path, body string, headers map[string]string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(respBody)
}

const startUpdateJSON = `{"update_id":10,"message":{"message_id":5,"from":{"id":42,"is_bot":false,"first_name":"Ana"},"chat":{"id":42,"type":"private"},"date":1700000000,"text":"/start user_abc"}}`

func TestTelegramWebhookEnqueuesUpdate(t *testing.T) {
	q := &recordingEnqueuer{accept: true}
	app := newWebhookTestApp(q, "")

	status, body := sendWebhook(t, app, "/bot"+webhookBotToken, startUpdateJSON, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body)

	require.Len(t, q.updates, 1)
	u := q.updates[0]
	assert.Equal(t, int64(10), u.UpdateID)
	require.NotNil(t, u.Message)
	assert.Equal(t, int64(42), u.Message.Chat.ID)
	assert.Equal(t, "/start user_abc", u.Message.Text)
}

func TestTelegramWebhookAcksWhenQueueFull(t *testing.T) {
	q := &recordingEnqueuer{accept: false}
	status, body := sendWebhook(t, newWebhookTestApp(q, ""), "/bot"+webhookBotToken, startUpdateJSON, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body)
	assert.Len(t, q.updates, 1)
}

func TestTelegramWebhookRejections(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		secret  string
		headers map[string]string
		status  int
	}{
		{"wrong token", "/bot999:nope", "", nil, http.StatusNotFound},
		{"token prefix only", "/bot123456", "", nil, http.StatusNotFound},
		{"missing secret header", "/bot" + webhookBotToken, "s3cret", nil, http.StatusForbidden},
		{"wrong secret header", "/bot" + webhookBotToken, "s3cret", map[string]string{SecretTokenHeader: "guess"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &recordingEnqueuer{accept: true}
			status, _ := sendWebhook(t, newWebhookTestApp(q, tt.secret), tt.path, startUpdateJSON, tt.headers)
			assert.Equal(t, tt.status, status)
			assert.Empty(t, q.updates)
		})
	}
}

func TestTelegramWebhookSecretAccepted(t *testing.T) {
	q := &recordingEnqueuer{accept: true}
	status, _ := sendWebhook(t, newWebhookTestApp(q, "s3cret"), "/bot"+webhookBotToken, startUpdateJSON,
		map[string]string{SecretTokenHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, q.updates, 1)
}

func TestTelegramWebhookMalformedBody(t *testing.T) {
	q := &recordingEnqueuer{accept: true}
	status, body := sendWebhook(t, newWebhookTestApp(q, ""), "/bot"+webhookBotToken, `{"update_id":`, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body)
	assert.Empty(t, q.updates)
}
