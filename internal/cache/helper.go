package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func GetJSON(ctx context.Context, rdb *redis.Client, key string, dest any) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	s, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(s, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, rdb *redis.Client, key string, v any, ttl time.Duration) error {
	if rdb == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first; on a miss it calls fetch, which must populate dest,
// then stores dest with ttl. Cache failures fall through to fetch.
func Aside(ctx context.Context, rdb *redis.Client, key string, dest any, ttl time.Duration, fetch func() error) error {
	if found, err := GetJSON(ctx, rdb, key, dest); err == nil && found {
		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	_ = SetJSON(ctx, rdb, key, dest, ttl)
	return nil
}

// AsideMany resolves ids through MGET, calls fetch for the misses and caches what it returns.
// The result maps id to value; ids unknown to fetch are absent.
func AsideMany[T any](ctx context.Context, rdb *redis.Client, ids []string, keyFn func(string) string, ttl time.Duration, fetch func(missing []string) (map[string]T, error)) (map[string]T, error) {
	out := make(map[string]T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	missing := ids
	if rdb != nil {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = keyFn(id)
		}
		if vals, err := rdb.MGet(ctx, keys...).Result(); err == nil {
			missing = missing[:0:0]
			for i, v := range vals {
				s, ok := v.(string)
				if !ok {
					missing = append(missing, ids[i])
					continue
				}
				var item T
				if err := json.Unmarshal([]byte(s), &item); err != nil {
					missing = append(missing, ids[i])
					continue
				}
				out[ids[i]] = item
			}
		}
	}

	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := fetch(missing)
	if err != nil {
		return nil, err
	}

	var pipe redis.Pipeliner
	if rdb != nil {
		pipe = rdb.Pipeline()
	}
	for id, item := range fetched {
		out[id] = item
		if pipe == nil {
			continue
		}
		if b, err := json.Marshal(item); err == nil {
			pipe.Set(ctx, keyFn(id), b, ttl)
		}
	}
	if pipe != nil && len(fetched) > 0 {
		_, _ = pipe.Exec(ctx)
	}

	return out, nil
}
