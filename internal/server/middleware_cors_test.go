package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"chirp/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frontendOrigin = "http://localhost:5173"

// corsApp runs only the middleware chain in front of a POST/PATCH echo route.
func corsApp() *fiber.App {
	srv := &Server{config: &config.Config{AllowedOrigins: frontendOrigin}}
	app := fiber.New()
	srv.SetupMiddleware(app)
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Post("/posts", ok)
	app.Patch("/users/me", ok)
	return app
}

func send(t *testing.T, app *fiber.App, method, path, origin string, headers ...string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func exhaustGlobalLimit(t *testing.T, app *fiber.App) {
	t.Helper()
	for i := 0; i < 100; i++ {
		resp := send(t, app, http.MethodPost, "/posts", frontendOrigin)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, "request %d", i+1)
	}
}

func TestSetupMiddleware_RateLimitedResponseIncludesCORSHeaders(t *testing.T) {
	app := corsApp()
	exhaustGlobalLimit(t, app)

	resp := send(t, app, http.MethodPost, "/posts", frontendOrigin)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, frontendOrigin, resp.Header.Get("Access-Control-Allow-Origin"),
		"a browser must be able to read the 429")
}

func TestSetupMiddleware_PreflightBypassesLimiter(t *testing.T) {
	app := corsApp()
	exhaustGlobalLimit(t, app)

	preflight := send(t, app, http.MethodOptions, "/posts", frontendOrigin,
		"Access-Control-Request-Method", http.MethodPost,
		"Access-Control-Request-Headers", "authorization,content-type")

	assert.Equal(t, fiber.StatusNoContent, preflight.StatusCode)
	assert.Equal(t, frontendOrigin, preflight.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, preflight.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestSetupMiddleware_DisallowedOriginGetsNoCORSHeaders(t *testing.T) {
	app := corsApp()

	tests := []struct {
		origin     string
		wantOrigin string
	}{
		{"http://evil.example", ""},
		{frontendOrigin, frontendOrigin},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			resp := send(t, app, http.MethodOptions, "/users/me", tt.origin,
				"Access-Control-Request-Method", http.MethodPatch)
			assert.Equal(t, tt.wantOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
			if tt.wantOrigin != "" {
				assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPatch)
			}
		})
	}
}
