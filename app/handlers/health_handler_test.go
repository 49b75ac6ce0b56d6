package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/amirphl/leadbridge/app/dto"
	testingutil "github.com/amirphl/leadbridge/testing"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getJSON(t *testing.T, app *fiber.App, path string) (int, dto.APIResponse) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	var body dto.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func newHealthTestApp(h HealthHandlerInterface) *fiber.App {
	app := fiber.New()
	app.Get("/health", h.Live)
	app.Get("/ready", h.Ready)
	return app
}

func TestHealthHandler(t *testing.T) {
	testDB := testingutil.NewTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	app := newHealthTestApp(NewHealthHandler(testDB.DB, client, "1.2.3"))

	t.Run("Live", func(t *testing.T) {
		status, body := getJSON(t, app, "/health")
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, body.Success)
		data, ok := body.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "1.2.3", data["version"])
	})

	t.Run("Ready", func(t *testing.T) {
		status, body := getJSON(t, app, "/ready")
		assert.Equal(t, http.StatusOK, status)
		data, ok := body.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "up", data["database"])
		assert.Equal(t, "up", data["cache"])
	})

	t.Run("NotReadyWhenCacheDown", func(t *testing.T) {
		mr.Close()
		status, body := getJSON(t, app, "/ready")
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.False(t, body.Success)
		detail, ok := body.Error.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "NOT_READY", detail["code"])
	})
}

func TestHealthHandlerWithoutCache(t *testing.T) {
	testDB := testingutil.NewTestDB(t)
	app := newHealthTestApp(NewHealthHandler(testDB.DB, nil, ""))

	status, body := getJSON(t, app, "/ready")
	assert.Equal(t, http.StatusOK, status)
	data, ok := body.Data.(map[string]any)
	require.True(t, ok)
	_, hasCache := data["cache"]
	assert.False(t, hasCache)
}
