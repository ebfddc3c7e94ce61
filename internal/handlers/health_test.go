package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ggorockee/shopfinder/internal/cache"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthRoutes(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/healthz", HealthCheck)
	app.Get("/api/health", LivenessCheck)
	app.Get("/api/readiness", ReadinessCheck(cache.NewMemoryStore()))

	for path, body := range map[string]string{
		"/healthz":       `{"status":"healthy"}`,
		"/api/health":    `{"status":"alive"}`,
		"/api/readiness": `{"status":"ready","cache":"ok"}`,
	} {
		resp, got := doGet(t, app, path)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, path)
		assert.JSONEq(t, body, string(got), path)
	}
}

func TestReadinessCacheDown(t *testing.T) {
	app := fiber.New()
	app.Get("/api/readiness", ReadinessCheck(pingerFunc(func(context.Context) error {
		return errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
	})))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/readiness", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("pq: password authentication failed")
	})

	resp, body := doGet(t, app, "/boom")
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, string(body))

	resp, body = doGet(t, app, "/nowhere")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Cannot GET /nowhere"}`, string(body))
}
