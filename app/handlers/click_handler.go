package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/amirphl/leadbridge/app/dto"
	businessflow "github.com/amirphl/leadbridge/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// ClickHandlerInterface defines the landing page contract
type ClickHandlerInterface interface {
	InitUser(c fiber.Ctx) error
}

type ClickHandler struct {
	flow      businessflow.ClickRegisterFlow
	validator *validator.Validate
	timeout   time.Duration
}

func NewClickHandler(flow businessflow.ClickRegisterFlow, timeout time.Duration) ClickHandlerInterface {
	return &ClickHandler{
		flow:      flow,
		validator: newValidator(),
		timeout:   timeout,
	}
}

func (h *ClickHandler) ErrorResponse(c fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(dto.ErrorResponse{Error: message})
}

// InitUser registers an ad click and returns its correlation token
// @Summary Register ad click
// @Tags Clicks
// @Accept json
// @Produce json
// @Param request body dto.InitUserRequest true "Click attribution data"
// @Success 200 {object} dto.InitUserResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/init-user [post]
func (h *ClickHandler) InitUser(c fiber.Ctx) error {
	var req dto.InitUserRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			return h.ErrorResponse(c, fiber.StatusBadRequest, getValidationErrorMessage(validationErrors[0]))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	ctx, cancel := createRequestContext(c, "/api/init-user", h.timeout)
	defer cancel()

	resp, err := h.flow.RegisterClick(ctx, &req)
	if err != nil {
		if businessflow.IsValidationError(err) {
			var be *businessflow.BusinessError
			if errors.As(err, &be) {
				return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message)
			}
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
		}
		log.Println("Register click failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "DB Error")
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}
