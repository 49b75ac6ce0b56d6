package handlers

import (
	"context"
	"time"

	"github.com/amirphl/leadbridge/app/dto"
	"github.com/amirphl/leadbridge/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthHandlerInterface defines liveness and readiness probes
type HealthHandlerInterface interface {
	Live(c fiber.Ctx) error
	Ready(c fiber.Ctx) error
}

type HealthHandler struct {
	db      *gorm.DB
	cache   *redis.Client
	version string
}

// NewHealthHandler creates probes; cache may be nil when Redis is disabled
func NewHealthHandler(db *gorm.DB, cache *redis.Client, version string) HealthHandlerInterface {
	return &HealthHandler{db: db, cache: cache, version: version}
}

func (h *HealthHandler) Live(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   h.version,
			"service":   "leadbridge",
		},
	})
}

func (h *HealthHandler) Ready(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	checks := fiber.Map{}
	ready := true

	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		checks["database"] = checkStatus(err)
		ready = ready && err == nil
	}
	if h.cache != nil {
		err := h.cache.Ping(ctx).Err()
		checks["cache"] = checkStatus(err)
		ready = ready && err == nil
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
			Success: false,
			Message: "Service is not ready",
			Error: dto.ErrorDetail{
				Code:    "NOT_READY",
				Details: checks,
			},
		})
	}

	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is ready",
		Data:    checks,
	})
}

func checkStatus(err error) string {
	if err != nil {
		return "down: " + err.Error()
	}
	return "up"
}
