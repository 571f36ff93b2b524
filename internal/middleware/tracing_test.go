package middleware

import (
	"net/http/httptest"
	"testing"

	"chirp/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	prev := observability.Tracer
	observability.Tracer = tp.Tracer("test")
	t.Cleanup(func() {
		observability.Tracer = prev
		_ = tp.Shutdown(t.Context())
	})
	return recorder
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingMiddleware_NamesSpanByRoute(t *testing.T) {
	recorder := recordSpans(t)

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/posts/:id", func(c *fiber.Ctx) error {
		SetUser(c, "user-1")
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/posts/abc", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /posts/:id", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	route, ok := spanAttr(spans[0], "http.route")
	require.True(t, ok)
	assert.Equal(t, "/posts/:id", route.AsString())
	user, ok := spanAttr(spans[0], "user.id")
	require.True(t, ok)
	assert.Equal(t, "user-1", user.AsString())
}

func TestTracingMiddleware_ServerErrorsMarkSpan(t *testing.T) {
	recorder := recordSpans(t)

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error { return fiber.ErrServiceUnavailable })
	app.Get("/gone", func(c *fiber.Ctx) error { return fiber.ErrNotFound })

	for _, path := range []string{"/boom", "/gone"} {
		_, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
	}

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	status, _ := spanAttr(spans[0], "http.response.status_code")
	assert.EqualValues(t, fiber.StatusServiceUnavailable, status.AsInt64())

	assert.Equal(t, codes.Unset, spans[1].Status().Code, "client errors leave the span status unset")
}
