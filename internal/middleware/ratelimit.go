package middleware

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"chirp/internal/models"
	"chirp/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when Redis cannot be consulted.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

// ErrNoRedis is returned when rate limiting is enforced without a Redis client.
var ErrNoRedis = errors.New("redis client is nil")

// Rule is a named fixed-window limit: at most Limit requests per Window per client.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
	Policy FailPolicy
}

// Decision is the outcome of counting one request against a Rule.
type Decision struct {
	Allowed   bool
	Remaining int
	// ResetIn is the time left in the current window.
	ResetIn time.Duration
}

// rateLimitBypassed reports whether APP_ENV disables rate limiting.
func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

func rateLimitKey(rule, client string) string {
	return "rl:" + rule + ":" + client
}

// Check counts one request by client against rule.
func Check(ctx context.Context, rdb *redis.Client, rule Rule, client string) (Decision, error) {
	if rateLimitBypassed() {
		return Decision{Allowed: true, Remaining: rule.Limit, ResetIn: rule.Window}, nil
	}
	if rdb == nil {
		return Decision{}, ErrNoRedis
	}

	key := rateLimitKey(rule.Name, client)
	var incr *redis.IntCmd
	var pttl *redis.DurationCmd
	_, err := rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		pttl = p.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("incr").Inc()
		return Decision{}, err
	}

	// A key without expiry is a window that has just opened.
	resetIn := pttl.Val()
	if resetIn <= 0 {
		resetIn = rule.Window
		if err := rdb.PExpire(ctx, key, rule.Window).Err(); err != nil {
			observability.RedisErrorRate.WithLabelValues("expire").Inc()
		}
	}

	count := int(incr.Val())
	return Decision{
		Allowed:   count <= rule.Limit,
		Remaining: max(rule.Limit-count, 0),
		ResetIn:   resetIn,
	}, nil
}

// RateLimit enforces rule per authenticated user, or per IP for anonymous requests.
// Responses carry X-RateLimit-Limit and X-RateLimit-Remaining; a 429 also carries Retry-After.
func RateLimit(rdb *redis.Client, rule Rule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		client := "ip:" + c.IP()
		if uid, ok := UserID(c); ok {
			client = "user:" + uid
		}

		d, err := Check(c.UserContext(), rdb, rule, client)
		if err != nil {
			if rule.Policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit fail-closed",
					slog.String("rule", rule.Name),
					slog.String("error", err.Error()),
				)
				return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
					Error: "Rate limiting unavailable, please retry shortly",
				})
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			seconds := int((d.ResetIn + time.Second - 1) / time.Second)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
		}
		return c.Next()
	}
}
