// Package services provides external service integrations such as the Telegram Bot API and the Conversions API
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/leadbridge/app/dto"
	"github.com/amirphl/leadbridge/config"
	"github.com/amirphl/leadbridge/utils"
)

const defaultTelegramAPIBaseURL = "https://api.telegram.org"

// BotReply is a text message with an optional single link button.
// An empty ParseMode sends the text as plain text.
type BotReply struct {
	ChatID     string
	Text       string
	ParseMode  string
	ButtonText string
	ButtonURL  string
}

// TelegramBotService talks to the Telegram Bot API
type TelegramBotService interface {
	SendMessage(ctx context.Context, reply BotReply) error
	SetWebhook(ctx context.Context, webhookURL, secretToken string) error
}

// TelegramBotServiceImpl implements TelegramBotService over HTTP
type TelegramBotServiceImpl struct {
	cfg    config.TelegramConfig
	client *http.Client
}

// NewTelegramBotService creates a Bot API client
func NewTelegramBotService(cfg config.TelegramConfig) TelegramBotService {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultTelegramAPIBaseURL
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TelegramBotServiceImpl{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// SendMessage sends reply as a sendMessage call
func (s *TelegramBotServiceImpl) SendMessage(ctx context.Context, reply BotReply) error {
	reqBody := dto.TelegramSendMessageRequest{
		ChatID:    reply.ChatID,
		Text:      reply.Text,
		ParseMode: reply.ParseMode,
	}
	if reply.ButtonURL != "" {
		reqBody.ReplyMarkup = &dto.TelegramInlineKeyboardMarkup{
			InlineKeyboard: [][]dto.TelegramInlineKeyboardButton{
				{{Text: reply.ButtonText, URL: reply.ButtonURL}},
			},
		}
	}
	return s.call(ctx, "sendMessage", reqBody)
}

// SetWebhook registers webhookURL with Telegram, restricted to message updates
func (s *TelegramBotServiceImpl) SetWebhook(ctx context.Context, webhookURL, secretToken string) error {
	reqBody := dto.TelegramSetWebhookRequest{
		URL:            webhookURL,
		SecretToken:    secretToken,
		AllowedUpdates: []string{"message"},
	}
	return s.call(ctx, "setWebhook", reqBody)
}

func (s *TelegramBotServiceImpl) call(ctx context.Context, method string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", s.cfg.APIBaseURL, s.cfg.BotToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// url.Error carries the bot token in its URL
		return fmt.Errorf("telegram %s request failed: %s", method, redactToken(err.Error(), s.cfg.BotToken))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp dto.TelegramAPIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("telegram %s http status: %d", method, resp.StatusCode)
		}
		return fmt.Errorf("failed to decode telegram %s response: %w", method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !apiResp.OK {
		return fmt.Errorf("telegram %s http status: %d: %s", method, resp.StatusCode, apiResp.Description)
	}

	return nil
}

func redactToken(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "<redacted>")
}

// MockTelegramBotService implements TelegramBotService for testing
type MockTelegramBotService struct {
	mu       sync.Mutex
	Sent     []MockBotMessage
	Webhooks []string
	Err      error
}

// MockBotMessage represents a mock outbound bot message
type MockBotMessage struct {
	Reply  BotReply
	SentAt time.Time
}

// NewMockTelegramBotService creates a new mock bot service
func NewMockTelegramBotService() *MockTelegramBotService {
	return &MockTelegramBotService{
		Sent: make([]MockBotMessage, 0),
	}
}

func (m *MockTelegramBotService) SendMessage(ctx context.Context, reply BotReply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, MockBotMessage{Reply: reply, SentAt: utils.UTCNow()})
	return nil
}

func (m *MockTelegramBotService) SetWebhook(ctx context.Context, webhookURL, secretToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Webhooks = append(m.Webhooks, webhookURL)
	return nil
}

// GetSentMessages returns a copy of all sent mock messages
func (m *MockTelegramBotService) GetSentMessages() []MockBotMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockBotMessage(nil), m.Sent...)
}
