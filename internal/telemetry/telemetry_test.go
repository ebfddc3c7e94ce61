package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledWithoutEndpoint(t *testing.T) {
	ctx := context.Background()

	shutdownTracer, err := InitTracer(ctx, ServiceName, "")
	require.NoError(t, err)
	assert.NoError(t, shutdownTracer(ctx))

	shutdownMeter, err := InitMeter(ctx, ServiceName, "")
	require.NoError(t, err)
	assert.NoError(t, shutdownMeter(ctx))

	// instruments stay nil and recording is a no-op
	RecordSearch(ctx, 3, false)
	RecordDetailFailure(ctx)

	_, span := StartSpan(ctx, "places.SearchPlaces")
	require.NotNil(t, span)
	span.End()
}

func TestMiddlewareAttachesSpan(t *testing.T) {
	app := fiber.New()
	app.Use(New())

	var sawSpan, sawProbeSpan bool
	app.Get("/api/places/search", func(c *fiber.Ctx) error {
		sawSpan = SpanFromContext(c) != nil
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		sawProbeSpan = SpanFromContext(c) != nil
		return c.SendStatus(fiber.StatusOK)
	})

	for _, path := range []string{"/api/places/search", "/healthz"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	assert.True(t, sawSpan)
	assert.False(t, sawProbeSpan)
}
