package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"chirp/internal/observability"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type summary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := NewClient(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestNewClient_ParsesURL(t *testing.T) {
	c, err := NewClient("redis://localhost:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", c.Options().Addr)
	assert.Equal(t, 2, c.Options().DB)
	_ = c.Close()

	_, err = NewClient("redis://%zz")
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	c := Connect(context.Background(), mr.Addr())
	require.NotNil(t, c)
	require.NoError(t, c.Set(context.Background(), "k", "v", 0).Err())
	mr.CheckGet(t, "k", "v")
	_ = c.Close()

	assert.Nil(t, Connect(context.Background(), "127.0.0.1:1"))
	assert.Nil(t, Connect(context.Background(), "redis://%zz"))
}

func TestInstrumentHook_SpansPerCommand(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := observability.Tracer
	observability.Tracer = tp.Tracer("test")
	t.Cleanup(func() { observability.Tracer = prev })

	mr, rdb := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, rdb.Set(ctx, "a", "1", 0).Err())
	assert.ErrorIs(t, rdb.Get(ctx, "missing").Err(), redis.Nil)
	_, err := rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, "n")
		p.Incr(ctx, "n")
		return nil
	})
	require.NoError(t, err)

	mr.SetError("LOADING")
	assert.Error(t, rdb.Get(ctx, "a").Err())

	var names []string
	var failed []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
		if s.Status().Code == codes.Error {
			failed = append(failed, s.Name())
		}
	}
	assert.Contains(t, names, "redis.set")
	assert.Contains(t, names, "redis.pipeline")
	assert.Equal(t, []string{"redis.get"}, failed, "a cache miss is not a failed span")
}

func TestGetSetJSON(t *testing.T) {
	mr, rdb := setupRedis(t)
	ctx := context.Background()

	var got summary
	found, err := GetJSON(ctx, rdb, UserKey("u1"), &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, rdb, UserKey("u1"), summary{ID: "u1", Name: "alice"}, UserTTL))
	assert.Equal(t, UserTTL, mr.TTL("user:u1"))

	found, err = GetJSON(ctx, rdb, UserKey("u1"), &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "alice", got.Name)

	require.NoError(t, mr.Set(ProfileKey("u1"), "{}"))
	InvalidateUser(ctx, rdb, "u1")
	assert.False(t, mr.Exists("user:u1"))
	assert.False(t, mr.Exists("profile:u1"))
}

func TestNilClientIsNoop(t *testing.T) {
	ctx := context.Background()
	var got summary
	found, err := GetJSON(ctx, nil, "k", &got)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, SetJSON(ctx, nil, "k", got, time.Minute))
	Invalidate(ctx, nil, "k")
	Invalidate(ctx, nil)
}

func TestAside(t *testing.T) {
	_, rdb := setupRedis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *summary) func() error {
		return func() error {
			calls++
			*dest = summary{ID: "u1", Name: "alice"}
			return nil
		}
	}

	var first summary
	require.NoError(t, Aside(ctx, rdb, UserKey("u1"), &first, UserTTL, fetch(&first)))
	var second summary
	require.NoError(t, Aside(ctx, rdb, UserKey("u1"), &second, UserTTL, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	var failed summary
	err := Aside(ctx, rdb, UserKey("u2"), &failed, UserTTL, func() error { return errors.New("db down") })
	assert.Error(t, err)
}

func TestAsideMany(t *testing.T) {
	mr, rdb := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, rdb, UserKey("a"), summary{ID: "a", Name: "cached"}, UserTTL))

	var requested []string
	fetch := func(missing []string) (map[string]summary, error) {
		requested = append(requested, missing...)
		out := map[string]summary{}
		for _, id := range missing {
			if id == "ghost" {
				continue
			}
			out[id] = summary{ID: id, Name: "fresh-" + id}
		}
		return out, nil
	}

	got, err := AsideMany(ctx, rdb, []string{"a", "b", "ghost"}, UserKey, UserTTL, fetch)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "ghost"}, requested)
	assert.Equal(t, "cached", got["a"].Name)
	assert.Equal(t, "fresh-b", got["b"].Name)
	_, ok := got["ghost"]
	assert.False(t, ok)
	assert.True(t, mr.Exists("user:b"))

	requested = nil
	got, err = AsideMany(ctx, nil, []string{"a"}, UserKey, UserTTL, fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, requested)
	assert.Equal(t, "fresh-a", got["a"].Name)
}
