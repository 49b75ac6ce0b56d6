package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/leadbridge/app/dto"
	"github.com/amirphl/leadbridge/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:ABC-secret"

func newTestBotService(t *testing.T, handler http.HandlerFunc) TelegramBotService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTelegramBotService(config.TelegramConfig{
		BotToken:   testBotToken,
		APIBaseURL: srv.URL + "/",
		Timeout:    2 * time.Second,
	})
}

func TestTelegramBotServiceSendMessage(t *testing.T) {
	var (
		gotPath string
		gotBody dto.TelegramSendMessageRequest
	)
	svc := newTestBotService(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	})

	err := svc.SendMessage(context.Background(), BotReply{
		ChatID:     "987654321",
		Text:       "🎯 **Imaš sreće!**",
		ParseMode:  "Markdown",
		ButtonText: "💬 Pošalji poruku SADA",
		ButtonURL:  "https://t.me/m/V8gacND6Yjcx",
	})
	require.NoError(t, err)

	assert.Equal(t, "/bot"+testBotToken+"/sendMessage", gotPath)
	assert.Equal(t, "987654321", gotBody.ChatID)
	assert.Equal(t, "🎯 **Imaš sreće!**", gotBody.Text)
	assert.Equal(t, "Markdown", gotBody.ParseMode)
	require.NotNil(t, gotBody.ReplyMarkup)
	require.Len(t, gotBody.ReplyMarkup.InlineKeyboard, 1)
	require.Len(t, gotBody.ReplyMarkup.InlineKeyboard[0], 1)
	assert.Equal(t, "💬 Pošalji poruku SADA", gotBody.ReplyMarkup.InlineKeyboard[0][0].Text)
	assert.Equal(t, "https://t.me/m/V8gacND6Yjcx", gotBody.ReplyMarkup.InlineKeyboard[0][0].URL)
}

func TestTelegramBotServiceSendMessageWithoutButton(t *testing.T) {
	var raw map[string]any
	svc := newTestBotService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	require.NoError(t, svc.SendMessage(context.Background(), BotReply{ChatID: "1", Text: "hi"}))
	_, hasMarkup := raw["reply_markup"]
	assert.False(t, hasMarkup)
	// plain text replies omit parse_mode so "_" or "*" in the text are not parsed
	_, hasParseMode := raw["parse_mode"]
	assert.False(t, hasParseMode)
}

func TestTelegramBotServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"api rejects", http.StatusForbidden, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`, "bot was blocked"},
		{"ok false with 200", http.StatusOK, `{"ok":false,"description":"Bad Request: chat not found"}`, "chat not found"},
		{"non json error", http.StatusBadGateway, `<html>bad gateway</html>`, "502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestBotService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			err := svc.SendMessage(context.Background(), BotReply{ChatID: "1", Text: "x"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.NotContains(t, err.Error(), testBotToken)
		})
	}
}

func TestTelegramBotServiceTransportErrorRedactsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	svc := NewTelegramBotService(config.TelegramConfig{BotToken: testBotToken, APIBaseURL: srv.URL, Timeout: time.Second})
	err := svc.SendMessage(context.Background(), BotReply{ChatID: "1", Text: "x"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testBotToken)
	assert.Contains(t, err.Error(), "<redacted>")
}

func TestTelegramBotServiceSetWebhook(t *testing.T) {
	var got dto.TelegramSetWebhookRequest
	svc := newTestBotService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot"+testBotToken+"/setWebhook", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":true,"description":"Webhook was set"}`))
	})

	err := svc.SetWebhook(context.Background(), "https://bridge.example.com/bot"+testBotToken, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "https://bridge.example.com/bot"+testBotToken, got.URL)
	assert.Equal(t, "s3cret", got.SecretToken)
	assert.Equal(t, []string{"message"}, got.AllowedUpdates)
}

func TestMockTelegramBotService(t *testing.T) {
	mock := NewMockTelegramBotService()
	require.NoError(t, mock.SendMessage(context.Background(), BotReply{ChatID: "1", Text: "a"}))
	require.NoError(t, mock.SetWebhook(context.Background(), "https://example.com/botX", ""))

	sent := mock.GetSentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "a", sent[0].Reply.Text)
	assert.Equal(t, []string{"https://example.com/botX"}, mock.Webhooks)
}
