// Package config provides configuration management and environment variable handling for the application
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	Telegram   TelegramConfig   `json:"telegram"`
	Facebook   FacebookConfig   `json:"facebook"`
	Webhook    WebhookConfig    `json:"webhook"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	URL             string        `json:"-"`
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"-"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

// DSN returns DATABASE_URL when set, otherwise a key/value DSN built from the parts
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	RequestTimeout    time.Duration `json:"request_timeout"`
	BodyLimit         int           `json:"body_limit"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins []string `json:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers"`
	CORSMaxAge     int      `json:"cors_max_age"`

	// Rate Limiting
	ClickRateLimit  int           `json:"click_rate_limit"`  // requests per window per IP
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per window per IP
	RateLimitWindow time.Duration `json:"rate_limit_window"`
}

type TelegramConfig struct {
	Provider          string        `json:"provider"` // telegram, mock
	BotToken          string        `json:"-"`
	APIBaseURL        string        `json:"api_base_url"`
	WebhookURL        string        `json:"webhook_url"`
	WebhookSecret     string        `json:"-"`
	Timeout           time.Duration `json:"timeout"`
	FinalDestination  string        `json:"final_destination"`
	SuccessText       string        `json:"success_text"`
	SuccessButton     string        `json:"success_button"`
	SuccessParseMode  string        `json:"success_parse_mode"`
	FallbackText      string        `json:"fallback_text"`
	FallbackButton    string        `json:"fallback_button"`
	FallbackParseMode string        `json:"fallback_parse_mode"` // plain text by default
	AlreadyText       string        `json:"already_text"`
	AlreadyButton     string        `json:"already_button"`
	AlreadyParseMode  string        `json:"already_parse_mode"`
	TokenPrefix       string        `json:"token_prefix"`
}

type FacebookConfig struct {
	Provider        string        `json:"provider"` // graph, mock
	AccessToken     string        `json:"-"`
	PixelID         string        `json:"pixel_id"`
	GraphAPIVersion string        `json:"graph_api_version"`
	GraphBaseURL    string        `json:"graph_base_url"`
	TestEventCode   string        `json:"test_event_code"`
	Timeout         time.Duration `json:"timeout"`
}

type WebhookConfig struct {
	Workers        int           `json:"workers"`
	QueueSize      int           `json:"queue_size"`
	ProcessTimeout time.Duration `json:"process_timeout"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`

	EnableAccessLog bool `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled        bool          `json:"enabled"`
	Provider       string        `json:"provider"` // redis
	RedisURL       string        `json:"-"`
	RedisDB        int           `json:"redis_db"`
	RedisPrefix    string        `json:"redis_prefix"`
	UpdateDedupTTL time.Duration `json:"update_dedup_ttl"`
	HealthInterval time.Duration `json:"health_interval"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

const (
	defaultSuccessText    = "🎯 **Imaš sreće!**\n\n Ostalo je par posljednjih mjesta za 30 dana FREE VIPA ⏳🔥 \n\n **Uđi odmah!**:"
	defaultSuccessButton  = "💬 Pošalji poruku SADA"
	defaultFallbackText   = "Ostalo je par posljednjih mjesta za 30 dana FREE VIPA:"
	defaultFallbackButton = "Pošalji poruku SADA"
	defaultAlreadyText    = "Već si prijavljen! Tvoje mjesto za 30 dana FREE VIPA te čeka:"
	defaultDestination    = "https://t.me/m/V8gacND6Yjcx"
)

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := loadFromEnv()

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFromEnv() *ProductionConfig {
	return &ProductionConfig{
		Database: DatabaseConfig{
			URL:             getEnvString("DATABASE_URL", ""),
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "postgres"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", getEnvInt("PORT", 3000)),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestTimeout:    getEnvDuration("SERVER_REQUEST_TIMEOUT", 10*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 1*1024*1024), // 1MB
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
		},
		Security: SecurityConfig{
			AllowedOrigins:  getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods:  getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders:  getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "X-Requested-With", "Content-Type", "Accept"}),
			CORSMaxAge:      getEnvInt("CORS_MAX_AGE", 86400),
			ClickRateLimit:  getEnvInt("CLICK_RATE_LIMIT", 60),
			GlobalRateLimit: getEnvInt("GLOBAL_RATE_LIMIT", 2000),
			RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
		},
		Telegram: TelegramConfig{
			Provider:          getEnvString("TELEGRAM_PROVIDER", "telegram"),
			BotToken:          getEnvString("TELEGRAM_TOKEN", ""),
			APIBaseURL:        getEnvString("TELEGRAM_API_BASE_URL", "https://api.telegram.org"),
			WebhookURL:        getEnvString("TELEGRAM_WEBHOOK_URL", ""),
			WebhookSecret:     getEnvString("TELEGRAM_WEBHOOK_SECRET", ""),
			Timeout:           getEnvDuration("TELEGRAM_TIMEOUT", 10*time.Second),
			FinalDestination:  getEnvString("FINAL_DESTINATION", defaultDestination),
			SuccessText:       getEnvString("TELEGRAM_SUCCESS_TEXT", defaultSuccessText),
			SuccessButton:     getEnvString("TELEGRAM_SUCCESS_BUTTON", defaultSuccessButton),
			SuccessParseMode:  getEnvString("TELEGRAM_SUCCESS_PARSE_MODE", "Markdown"),
			FallbackText:      getEnvString("TELEGRAM_FALLBACK_TEXT", defaultFallbackText),
			FallbackButton:    getEnvString("TELEGRAM_FALLBACK_BUTTON", defaultFallbackButton),
			FallbackParseMode: getEnvString("TELEGRAM_FALLBACK_PARSE_MODE", ""),
			AlreadyText:       getEnvString("TELEGRAM_ALREADY_LINKED_TEXT", defaultAlreadyText),
			AlreadyButton:     getEnvString("TELEGRAM_ALREADY_LINKED_BUTTON", defaultSuccessButton),
			AlreadyParseMode:  getEnvString("TELEGRAM_ALREADY_LINKED_PARSE_MODE", "Markdown"),
			TokenPrefix:       getEnvString("TOKEN_PREFIX", "user_"),
		},
		Facebook: FacebookConfig{
			Provider:        getEnvString("FB_PROVIDER", "graph"),
			AccessToken:     getEnvString("FB_ACCESS_TOKEN", ""),
			PixelID:         getEnvString("FB_PIXEL_ID", ""),
			GraphAPIVersion: getEnvString("FB_GRAPH_API_VERSION", "v18.0"),
			GraphBaseURL:    getEnvString("FB_GRAPH_BASE_URL", "https://graph.facebook.com"),
			TestEventCode:   getEnvString("FB_TEST_EVENT_CODE", ""),
			Timeout:         getEnvDuration("FB_TIMEOUT", 10*time.Second),
		},
		Webhook: WebhookConfig{
			Workers:        getEnvInt("WEBHOOK_WORKERS", 4),
			QueueSize:      getEnvInt("WEBHOOK_QUEUE_SIZE", 1000),
			ProcessTimeout: getEnvDuration("WEBHOOK_PROCESS_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:           getEnvString("LOG_LEVEL", "info"),
			Output:          getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:        getEnvString("LOG_FILE_PATH", "/var/log/leadbridge/app.log"),
			MaxSize:         getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:      getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:          getEnvInt("LOG_MAX_AGE", 30),
			Compress:        getEnvBool("LOG_COMPRESS", true),
			EnableAccessLog: getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:        getEnvBool("CACHE_ENABLED", false),
			Provider:       getEnvString("CACHE_PROVIDER", "redis"),
			RedisURL:       getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:        getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:    getEnvString("CACHE_REDIS_PREFIX", "leadbridge:"),
			UpdateDedupTTL: getEnvDuration("CACHE_UPDATE_DEDUP_TTL", 24*time.Hour),
			HealthInterval: getEnvDuration("CACHE_HEALTH_INTERVAL", 30*time.Second),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}
}

// loadEnvFile loads variables from path if it exists. Variables already set in
// the process environment win.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.URL == "" {
		if cfg.Database.Host == "" {
			errors = append(errors, "DB_HOST is required")
		}
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			errors = append(errors, "DB_PORT must be between 1 and 65535")
		}
		if cfg.Database.Name == "" {
			errors = append(errors, "DB_NAME is required")
		}
		if cfg.Database.User == "" {
			errors = append(errors, "DB_USER is required")
		}
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}

	// Validate telegram configuration
	if cfg.Telegram.BotToken == "" {
		errors = append(errors, "TELEGRAM_TOKEN is required")
	}
	if !slices.Contains([]string{"telegram", "mock"}, cfg.Telegram.Provider) {
		errors = append(errors, "TELEGRAM_PROVIDER must be one of: [telegram mock]")
	}
	if u, err := url.Parse(cfg.Telegram.FinalDestination); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, "FINAL_DESTINATION must be an absolute URL")
	}
	if cfg.Telegram.TokenPrefix == "" {
		errors = append(errors, "TOKEN_PREFIX is required")
	}

	// Validate facebook configuration if enabled
	switch cfg.Facebook.Provider {
	case "graph":
		if cfg.Facebook.AccessToken == "" {
			errors = append(errors, "FB_ACCESS_TOKEN is required for graph provider")
		}
		if cfg.Facebook.PixelID == "" {
			errors = append(errors, "FB_PIXEL_ID is required for graph provider")
		}
	case "mock":
	default:
		errors = append(errors, "FB_PROVIDER must be one of: [graph mock]")
	}

	// Validate webhook worker configuration
	if cfg.Webhook.Workers <= 0 {
		errors = append(errors, "WEBHOOK_WORKERS must be positive")
	}
	if cfg.Webhook.QueueSize <= 0 {
		errors = append(errors, "WEBHOOK_QUEUE_SIZE must be positive")
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		if !slices.Contains(validLevels, cfg.Logging.Level) {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}
	if !slices.Contains([]string{"stdout", "file", "both"}, cfg.Logging.Output) {
		errors = append(errors, "LOG_OUTPUT must be one of: [stdout file both]")
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.FilePath == "" {
		errors = append(errors, "LOG_FILE_PATH is required when logging to a file")
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled {
		if cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
			errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
