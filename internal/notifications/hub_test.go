package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()

	a, err := hub.Register("u1", nil)
	require.NoError(t, err)
	b, err := hub.Register("u1", nil)
	require.NoError(t, err)
	assert.True(t, hub.IsOnline("u1"))
	assert.Equal(t, "u1", a.UserID())
	assert.Equal(t, 2, hub.ConnectionCount())

	hub.UnregisterClient(a)
	assert.True(t, hub.IsOnline("u1"))
	hub.UnregisterClient(b)
	hub.UnregisterClient(b)
	assert.False(t, hub.IsOnline("u1"))
	assert.Equal(t, 0, hub.ConnectionCount())

	_, open := <-a.send
	assert.False(t, open, "unregister closes the send channel")
}

func TestHub_PerUserLimit(t *testing.T) {
	hub := NewHub()
	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register("u1", nil)
		require.NoError(t, err)
	}
	_, err := hub.Register("u1", nil)
	assert.ErrorIs(t, err, ErrUserConnsMax)

	_, err = hub.Register("u2", nil)
	assert.NoError(t, err)
}

func TestHub_BroadcastTargetsOneUser(t *testing.T) {
	hub := NewHub()
	alice, err := hub.Register("alice", nil)
	require.NoError(t, err)
	bob, err := hub.Register("bob", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, hub.Broadcast("alice", []byte("hello")))
	assert.Equal(t, 0, hub.Broadcast("carol", []byte("nobody")))

	assert.Equal(t, "hello", string(<-alice.send))
	assert.Empty(t, bob.send)
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register("u1", nil)
	require.NoError(t, err)

	queued := 0
	for i := 0; i < sendBuffer+5; i++ {
		if c.TrySend([]byte("x")) {
			queued++
		}
	}
	assert.Equal(t, sendBuffer, queued)
	assert.Len(t, c.send, sendBuffer)

	hub.UnregisterClient(c)
	assert.False(t, c.TrySend([]byte("late")))
}

func TestHub_ShutdownRejectsNewConnections(t *testing.T) {
	hub := NewHub()
	_, err := hub.Register("u1", nil)
	require.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Equal(t, 0, hub.ConnectionCount())

	_, err = hub.Register("u1", nil)
	assert.ErrorIs(t, err, ErrServerFull)
}

func TestHub_StartWiringForwardsPublishedEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	hub := NewHub()
	notifier := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, notifier))

	client, err := hub.Register("alice", nil)
	require.NoError(t, err)

	require.NoError(t, notifier.PublishEvent(ctx, "alice", EventNotification, map[string]string{"type": "like"}))

	var got []byte
	assert.Eventually(t, func() bool {
		select {
		case got = <-client.send:
			return true
		default:
			return false
		}
	}, testEventuallyTimeout, testPollInterval)
	assert.JSONEq(t, `{"type":"notification","payload":{"type":"like"}}`, string(got))
}
