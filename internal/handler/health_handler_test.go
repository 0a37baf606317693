package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-courseware-api/internal/config"
	"github.com/noah-isme/gema-courseware-api/internal/handler"
	"github.com/noah-isme/gema-courseware-api/internal/router"
)

type healthEnvelope struct {
	Success bool                   `json:"success"`
	Data    handler.HealthResponse `json:"data"`
}

func TestHealthCheck(t *testing.T) {
	cfg := config.Config{
		AppName: "GEMA Courseware API",
		AppEnv:  "test",
	}

	app := fiber.New()
	router.Register(app, cfg, router.Dependencies{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, cfg.AppName, resp.Header.Get("X-Application"))

	var payload healthEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.True(t, payload.Success)
	assert.Equal(t, "ok", payload.Data.Status)
	assert.Equal(t, cfg.AppName, payload.Data.Service)
	assert.Equal(t, cfg.AppEnv, payload.Data.Environment)
	assert.WithinDuration(t, time.Now().UTC(), payload.Data.Timestamp, 2*time.Second)
}

func TestMetricsEndpointExposesSubmissionCollectors(t *testing.T) {
	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test"}, router.Dependencies{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "submission_conflicts_total")
	assert.Contains(t, string(body), `submission_attempts_total{outcome="rejected",type="file-upload"}`)
	assert.Contains(t, string(body), `progress_cache_requests_total{result="hit"}`)
}
