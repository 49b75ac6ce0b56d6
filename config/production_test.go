package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setMinimalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_TOKEN", "123456:ABC")
	t.Setenv("FB_PROVIDER", "mock")
}

func TestLoadProductionConfigDefaults(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, []string{"GET", "POST", "OPTIONS"}, cfg.Security.AllowedMethods)
	assert.Equal(t, []string{"Origin", "X-Requested-With", "Content-Type", "Accept"}, cfg.Security.AllowedHeaders)
	assert.Equal(t, "https://t.me/m/V8gacND6Yjcx", cfg.Telegram.FinalDestination)
	assert.Equal(t, "Markdown", cfg.Telegram.SuccessParseMode)
	assert.Equal(t, "Markdown", cfg.Telegram.AlreadyParseMode)
	assert.Empty(t, cfg.Telegram.FallbackParseMode)
	assert.Equal(t, "user_", cfg.Telegram.TokenPrefix)
	assert.Contains(t, cfg.Telegram.SuccessText, "Imaš sreće")
	assert.Equal(t, "v18.0", cfg.Facebook.GraphAPIVersion)
	assert.Equal(t, 4, cfg.Webhook.Workers)
	assert.Equal(t, 1000, cfg.Webhook.QueueSize)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Cache.UpdateDedupTTL)
}

func TestLoadProductionConfigPort(t *testing.T) {
	t.Run("PortFallback", func(t *testing.T) {
		setMinimalEnv(t)
		t.Setenv("PORT", "8080")

		cfg, err := LoadProductionConfig()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)
	})

	t.Run("ServerPortWins", func(t *testing.T) {
		setMinimalEnv(t)
		t.Setenv("PORT", "8080")
		t.Setenv("SERVER_PORT", "9090")

		cfg, err := LoadProductionConfig()
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
	})
}

func TestLoadProductionConfigOverrides(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("WEBHOOK_PROCESS_TIMEOUT", "5s")
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("FINAL_DESTINATION", "https://t.me/other")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/leads?sslmode=disable")

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.Webhook.ProcessTimeout)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "https://t.me/other", cfg.Telegram.FinalDestination)
	assert.Equal(t, "postgres://u:p@db:5432/leads?sslmode=disable", cfg.Database.DSN())
}

func TestDatabaseConfigDSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "leads", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=leads sslmode=disable", cfg.DSN())
}

func TestValidateProductionConfig(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		expect string
	}{
		{"missing telegram token", map[string]string{"TELEGRAM_TOKEN": ""}, "TELEGRAM_TOKEN is required"},
		{"graph without credentials", map[string]string{"FB_PROVIDER": "graph"}, "FB_ACCESS_TOKEN is required"},
		{"unknown fb provider", map[string]string{"FB_PROVIDER": "pixel"}, "FB_PROVIDER must be one of"},
		{"unknown telegram provider", map[string]string{"TELEGRAM_PROVIDER": "slack"}, "TELEGRAM_PROVIDER must be one of"},
		{"relative destination", map[string]string{"FINAL_DESTINATION": "/landing"}, "FINAL_DESTINATION must be an absolute URL"},
		{"bad log output", map[string]string{"LOG_OUTPUT": "syslog"}, "LOG_OUTPUT must be one of"},
		{"bad log level", map[string]string{"LOG_LEVEL": "trace"}, "LOG_LEVEL must be one of"},
		{"no workers", map[string]string{"WEBHOOK_WORKERS": "0"}, "WEBHOOK_WORKERS must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setMinimalEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadProductionConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expect)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	const (
		fromFile = "LEADBRIDGE_TEST_FROM_FILE"
		fromEnv  = "LEADBRIDGE_TEST_FROM_ENV"
	)
	// register restoration, then start from an unset variable
	t.Setenv(fromFile, "")
	require.NoError(t, os.Unsetenv(fromFile))
	t.Setenv(fromEnv, "process")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(fromFile+"=file\n"+fromEnv+"=file\n"), 0o600))

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "file", os.Getenv(fromFile))
	assert.Equal(t, "process", os.Getenv(fromEnv))

	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
