// Package middleware provides authentication, logging, tracing, metrics and rate limiting middleware.
package middleware

import (
	"context"
	"strings"

	"chirp/internal/models"

	"github.com/gofiber/fiber/v2"
)

// TokenAuthenticator validates a bearer token and returns the user id it was issued for.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) string {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// SetUser stores the authenticated user id in Fiber locals and the request context.
func SetUser(c *fiber.Ctx, userID string) {
	c.Locals("userID", userID)
	c.SetUserContext(WithUserID(c.UserContext(), userID))
}

// AuthRequired is a middleware that enforces authentication for protected routes.
func AuthRequired(auth TokenAuthenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := BearerToken(c)
		if token == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		userID, err := auth.Authenticate(c.UserContext(), token)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		SetUser(c, userID)
		return c.Next()
	}
}

// OptionalAuth sets the user when a valid bearer token is present and never rejects the request.
func OptionalAuth(auth TokenAuthenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token := BearerToken(c); token != "" {
			if userID, err := auth.Authenticate(c.UserContext(), token); err == nil {
				SetUser(c, userID)
			}
		}
		return c.Next()
	}
}

// UserID returns the authenticated user id set by AuthRequired.
func UserID(c *fiber.Ctx) (string, bool) {
	id, ok := c.Locals("userID").(string)
	return id, ok && id != ""
}
