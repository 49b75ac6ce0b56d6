// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"strings"
	"time"

	"github.com/amirphl/leadbridge/app/dto"
	"github.com/amirphl/leadbridge/app/handlers"
	"github.com/amirphl/leadbridge/app/middleware"
	"github.com/amirphl/leadbridge/config"
	"github.com/amirphl/leadbridge/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	healthPath = "/health"
	readyPath  = "/ready"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// RouterConfig groups the settings the router needs
type RouterConfig struct {
	Server    config.ServerConfig
	Security  config.SecurityConfig
	Metrics   config.MetricsConfig
	AccessLog io.Writer // nil disables access logging
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app            *fiber.App
	cfg            RouterConfig
	clickHandler   handlers.ClickHandlerInterface
	webhookHandler handlers.TelegramWebhookHandlerInterface
	healthHandler  handlers.HealthHandlerInterface
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg RouterConfig,
	clickHandler handlers.ClickHandlerInterface,
	webhookHandler handlers.TelegramWebhookHandlerInterface,
	healthHandler handlers.HealthHandlerInterface,
) Router {
	bodyLimit := cfg.Server.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 1 * 1024 * 1024
	}

	app := fiber.New(fiber.Config{
		AppName:      "Lead Bridge",
		ServerHeader: "leadbridge",
		ErrorHandler: errorHandler,
		BodyLimit:    bodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ProxyHeader:  cfg.Server.ProxyHeader,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})

	return &FiberRouter{
		app:            app,
		cfg:            cfg,
		clickHandler:   clickHandler,
		webhookHandler: webhookHandler,
		healthHandler:  healthHandler,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	// Probes and metrics (no rate limiting)
	r.app.Get(healthPath, r.healthHandler.Live)
	r.app.Get(readyPath, r.healthHandler.Ready)
	if r.cfg.Metrics.Enabled {
		r.app.Get(r.metricsPath(), adaptor.HTTPHandler(promhttp.Handler()))
	}

	// Telegram webhook; the bot token is the path secret
	r.app.Post("/bot:token", r.webhookHandler.Webhook)

	// Landing page API
	api := r.app.Group("/api")
	api.Use(limiter.New(limiter.Config{
		Max:        r.rateLimit(r.cfg.Security.ClickRateLimit, 60),
		Expiration: r.rateWindow(),
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
				Error: "Too many requests. Please try again later.",
			})
		},
	}))
	api.Post("/init-user", r.clickHandler.InitUser)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Recovery middleware - outermost so panics anywhere below are caught
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNowRFC3339(),
				requestid.FromContext(c),
				e,
				redactPath(c.Path()),
				c.Method(),
				c.IP(),
			)
		},
	}))

	// Request ID middleware
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics())
	}

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "0",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000, // 1 year
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginResourcePolicy: "cross-origin",
		CrossOriginOpenerPolicy:   "same-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	// CORS: the landing page may be served from any domain
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.cfg.Security.AllowedOrigins,
		AllowMethods: r.cfg.Security.AllowedMethods,
		AllowHeaders: r.cfg.Security.AllowedHeaders,
		ExposeHeaders: []string{
			"X-Request-ID",
		},
		AllowCredentials: false,
		MaxAge:           r.corsMaxAge(),
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
		}))
	}

	// Global rate limiting; the webhook is exempt so Telegram retries are never throttled
	r.app.Use(limiter.New(limiter.Config{
		Max:        r.rateLimit(r.cfg.Security.GlobalRateLimit, 2000),
		Expiration: r.rateWindow(),
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			p := c.Path()
			return p == healthPath || p == readyPath || strings.HasPrefix(p, "/bot")
		},
	}))

	if r.cfg.AccessLog != nil {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","pid":"${pid}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${route}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Stream:     r.cfg.AccessLog,
			Next: func(c fiber.Ctx) bool {
				return c.Path() == healthPath || c.Path() == readyPath
			},
		}))
	}
}

func (r *FiberRouter) rateLimit(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (r *FiberRouter) rateWindow() time.Duration {
	if r.cfg.Security.RateLimitWindow <= 0 {
		return 1 * time.Minute
	}
	return r.cfg.Security.RateLimitWindow
}

func (r *FiberRouter) corsMaxAge() int {
	if r.cfg.Security.CORSMaxAge <= 0 {
		return utils.CORSMaxAge
	}
	return r.cfg.Security.CORSMaxAge
}

func (r *FiberRouter) metricsPath() string {
	if r.cfg.Metrics.Path == "" {
		return "/metrics"
	}
	return r.cfg.Metrics.Path
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       redactPath(c.Path()),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error %d: %v", code, err)

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNowUnix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// Helper functions

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// redactPath hides the bot token carried in webhook paths
func redactPath(p string) string {
	if strings.HasPrefix(p, "/bot") {
		return "/bot<redacted>"
	}
	return p
}
