package handlers

import (
	"crypto/subtle"
	"log"

	"github.com/amirphl/leadbridge/app/dto"
	"github.com/gofiber/fiber/v3"
)

// SecretTokenHeader carries the secret_token registered with setWebhook
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateEnqueuer accepts updates for processing off the request path
type UpdateEnqueuer interface {
	Enqueue(update *dto.TelegramUpdate) bool
}

// TelegramWebhookHandlerInterface defines the Telegram webhook contract
type TelegramWebhookHandlerInterface interface {
	Webhook(c fiber.Ctx) error
}

type TelegramWebhookHandler struct {
	dispatcher UpdateEnqueuer
	botToken   string
	secret     string
}

func NewTelegramWebhookHandler(dispatcher UpdateEnqueuer, botToken, secret string) TelegramWebhookHandlerInterface {
	return &TelegramWebhookHandler{
		dispatcher: dispatcher,
		botToken:   botToken,
		secret:     secret,
	}
}

// Webhook acknowledges a Telegram update and queues it. The response is 200
// with an empty body whatever happens downstream.
// @Summary Telegram webhook
// @Tags Telegram
// @Accept json
// @Param token path string true "Bot token"
// @Success 200
// @Failure 403
// @Failure 404
// @Router /bot{token} [post]
func (h *TelegramWebhookHandler) Webhook(c fiber.Ctx) error {
	if !constantTimeEqual(c.Params("token"), h.botToken) {
		return c.SendStatus(fiber.StatusNotFound)
	}
	if h.secret != "" && !constantTimeEqual(c.Get(SecretTokenHeader), h.secret) {
		return c.SendStatus(fiber.StatusForbidden)
	}

	var update dto.TelegramUpdate
	if err := c.Bind().JSON(&update); err != nil {
		log.Println("Decode telegram update failed", err)
		return ack(c)
	}

	h.dispatcher.Enqueue(&update)
	return ack(c)
}

// ack answers 200 with an empty body. SendStatus would fill in "OK".
func ack(c fiber.Ctx) error {
	return c.Status(fiber.StatusOK).Send(nil)
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
