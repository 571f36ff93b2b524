package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefixes.
const (
	UserKeyPrefix      = "user:"
	ProfileKeyPrefix   = "profile:"
	BlacklistKeyPrefix = "blacklist:"
	WSTicketKeyPrefix  = "ws_ticket:"
)

// TTLs.
const (
	UserTTL     = 5 * time.Minute
	WSTicketTTL = 60 * time.Second
)

// UserKey is the cache key of a user summary.
func UserKey(userID string) string {
	return UserKeyPrefix + userID
}

// ProfileKey is the cache key of a full public profile. The password hash is
// never serialized, so cached profiles are for responses only.
func ProfileKey(userID string) string {
	return ProfileKeyPrefix + userID
}

// BlacklistKey marks a revoked token id.
func BlacklistKey(jti string) string {
	return BlacklistKeyPrefix + jti
}

// WSTicketKey holds the user id a single-use websocket ticket was issued to.
func WSTicketKey(ticket string) string {
	return WSTicketKeyPrefix + ticket
}

// Invalidate removes keys. Failures are counted by the metrics hook and otherwise ignored.
func Invalidate(ctx context.Context, rdb *redis.Client, keys ...string) {
	if rdb != nil && len(keys) > 0 {
		rdb.Del(ctx, keys...)
	}
}

// InvalidateUser removes the cached summary and profile of userID.
func InvalidateUser(ctx context.Context, rdb *redis.Client, userID string) {
	Invalidate(ctx, rdb, UserKey(userID), ProfileKey(userID))
}
