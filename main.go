// Package main provides the main entry point for the lead bridge service
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/leadbridge/app/dto"
	"github.com/amirphl/leadbridge/app/handlers"
	"github.com/amirphl/leadbridge/app/middleware"
	"github.com/amirphl/leadbridge/app/router"
	"github.com/amirphl/leadbridge/app/scheduler"
	"github.com/amirphl/leadbridge/app/services"
	businessflow "github.com/amirphl/leadbridge/business_flow"
	"github.com/amirphl/leadbridge/config"
	"github.com/amirphl/leadbridge/models"
	"github.com/amirphl/leadbridge/repository"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	logger    *log.Logger
	stopFuncs []func()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalf("leadbridge: %v", err)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "leadbridge",
		Short:         "Links ad clicks to Telegram chats and reports leads to the Conversions API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newSetWebhookCommand(), newStatsCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and webhook workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadProductionConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return runServer(cfg)
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the click_records table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadProductionConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			db, err := initializeDatabase(cfg.Database)
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(models.AllModels()...); err != nil {
				return fmt.Errorf("auto migrate failed: %w", err)
			}
			log.Println("Migration completed")
			return nil
		},
	}
}

func newSetWebhookCommand() *cobra.Command {
	var webhookURL string
	cmd := &cobra.Command{
		Use:   "set-webhook",
		Short: "Register the webhook URL with the Telegram Bot API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadProductionConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if webhookURL == "" {
				webhookURL = cfg.Telegram.WebhookURL
			}
			if webhookURL == "" {
				return errors.New("webhook url is required (--url or TELEGRAM_WEBHOOK_URL)")
			}
			bot := services.NewTelegramBotService(cfg.Telegram)
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Telegram.Timeout)
			defer cancel()
			if err := bot.SetWebhook(ctx, webhookURL, cfg.Telegram.WebhookSecret); err != nil {
				return err
			}
			log.Printf("Webhook registered at %s", webhookURL)
			return nil
		},
	}
	cmd.Flags().StringVar(&webhookURL, "url", "", "public webhook URL ending in /bot<token>")
	return cmd
}

func newStatsCommand() *cobra.Command {
	var (
		since  time.Duration
		until  string
		recent int
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print click and link counts as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadProductionConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			db, err := initializeDatabase(cfg.Database)
			if err != nil {
				return err
			}

			req := dto.ClickStatsRequest{Recent: recent}
			if since > 0 {
				req.Since = time.Now().UTC().Add(-since)
			}
			if until != "" {
				if req.Until, err = time.Parse(time.RFC3339, until); err != nil {
					return fmt.Errorf("invalid --until: %w", err)
				}
			}

			flow := businessflow.NewClickStatsFlow(repository.NewClickRecordRepository(db))
			stats, err := flow.ClickStats(cmd.Context(), req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
	cmd.Flags().DurationVar(&since, "since", 0, "only count clicks newer than this (e.g. 24h)")
	cmd.Flags().StringVar(&until, "until", "", "only count clicks created before this RFC3339 time")
	cmd.Flags().IntVar(&recent, "recent", 0, "also list this many latest clicks")
	return cmd
}

func runServer(cfg *config.ProductionConfig) error {
	log.Printf("Starting lead bridge %s (env=%s commit=%s built=%s)",
		cfg.Deployment.Version, cfg.Deployment.Environment, cfg.Deployment.CommitHash, cfg.Deployment.BuildTime)

	app, err := initializeApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", app.config.Server.Host, app.config.Server.Port)
		serverErr <- app.router.Start(address)
	}()

	select {
	case <-sigChan:
		app.logger.Println("Shutting down gracefully...")
	case err := <-serverErr:
		app.shutdown()
		return fmt.Errorf("server stopped: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting webhooks before draining the worker queue
	if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		app.logger.Printf("Error during shutdown: %v", err)
	}
	app.shutdown()

	app.logger.Println("Server stopped")
	return nil
}

func (a *Application) shutdown() {
	for i := len(a.stopFuncs) - 1; i >= 0; i-- {
		a.stopFuncs[i]()
	}
}

// initializeLogger routes the process log to stdout, a rotated file, or both
func initializeLogger(cfg config.LoggingConfig) (*log.Logger, io.Writer, func()) {
	var writers []io.Writer
	closeFn := func() {}

	if cfg.Output == "stdout" || cfg.Output == "both" || cfg.Output == "" {
		writers = append(writers, os.Stdout)
	}
	if cfg.Output == "file" || cfg.Output == "both" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		writers = append(writers, rotator)
		closeFn = func() { _ = rotator.Close() }
	}

	out := io.MultiWriter(writers...)
	flags := log.LstdFlags | log.LUTC
	if cfg.Level == "debug" {
		flags |= log.Lshortfile
	}
	log.SetOutput(out)
	log.SetFlags(flags)

	return log.New(out, "", flags), out, closeFn
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(log.Default(), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis. The returned func stops it.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger *log.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

func initializeBotService(cfg config.TelegramConfig) services.TelegramBotService {
	switch cfg.Provider {
	case "mock":
		return services.NewMockTelegramBotService()
	default:
		return services.NewTelegramBotService(cfg)
	}
}

func initializeConversionService(cfg config.FacebookConfig) services.ConversionService {
	switch cfg.Provider {
	case "mock":
		return services.NewMockConversionService()
	default:
		return services.NewConversionService(cfg)
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	logger, out, closeLog := initializeLogger(cfg.Logging)
	stopFuncs := []func(){closeLog}

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		stopFuncs = append(stopFuncs, func() { _ = sqlDB.Close() })
	}

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(models.AllModels()...); err != nil {
			return nil, fmt.Errorf("auto migrate failed: %w", err)
		}
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthInterval, logger))
	}

	recorder := middleware.NewMetricsRecorder()

	// Repositories and outbound clients
	clickRepo := repository.NewClickRecordRepository(db)
	bot := initializeBotService(cfg.Telegram)
	conversions := initializeConversionService(cfg.Facebook)
	dedup := services.NewUpdateDeduplicator(rc, cfg.Cache.RedisPrefix, cfg.Cache.UpdateDedupTTL)

	// Business flows
	clickFlow := businessflow.NewClickRegisterFlow(clickRepo, businessflow.NewTokenGenerator(cfg.Telegram.TokenPrefix), recorder, logger)
	updateFlow := businessflow.NewTelegramUpdateFlow(clickRepo, bot, conversions, dedup, recorder, cfg.Telegram, logger)

	dispatcher := scheduler.NewUpdateDispatcher(updateFlow, cfg.Webhook, recorder, logger)
	stopFuncs = append(stopFuncs, dispatcher.Start(context.Background()))

	// Handlers
	clickHandler := handlers.NewClickHandler(clickFlow, cfg.Server.RequestTimeout)
	webhookHandler := handlers.NewTelegramWebhookHandler(dispatcher, cfg.Telegram.BotToken, cfg.Telegram.WebhookSecret)
	healthHandler := handlers.NewHealthHandler(db, rc, cfg.Deployment.Version)

	var accessLog io.Writer
	if cfg.Logging.EnableAccessLog {
		accessLog = out
	}
	r := router.NewFiberRouter(router.RouterConfig{
		Server:    cfg.Server,
		Security:  cfg.Security,
		Metrics:   cfg.Metrics,
		AccessLog: accessLog,
	}, clickHandler, webhookHandler, healthHandler)

	if cfg.Telegram.WebhookURL != "" && cfg.Telegram.Provider != "mock" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Telegram.Timeout)
		if err := bot.SetWebhook(ctx, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			logger.Printf("setWebhook failed, keeping the existing registration: %v", err)
		}
		cancel()
	}

	return &Application{
		router:    r,
		config:    cfg,
		logger:    logger,
		stopFuncs: stopFuncs,
	}, nil
}
