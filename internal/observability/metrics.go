package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PostsCreated counts successfully persisted posts.
	PostsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chirp_posts_created_total",
		Help: "Total number of posts created",
	})

	// LikeToggles counts like toggles by target (post, comment) and direction (like, unlike).
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chirp_like_toggles_total",
		Help: "Total number of like toggles by target and direction",
	}, []string{"target", "direction"})

	// CommentsAdded counts comments appended to posts.
	CommentsAdded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chirp_comments_added_total",
		Help: "Total number of comments added",
	})

	// NotificationsRecorded counts notifications persisted by type.
	NotificationsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chirp_notifications_recorded_total",
		Help: "Total number of notifications recorded by type",
	}, []string{"type"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chirp_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// StoreQueryLatency records store query latency by operation and collection.
	StoreQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chirp_store_query_latency_seconds",
		Help:    "Store query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "collection"})

	// WebSocketConnectionsTotal is the gauge of active notification WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chirp_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chirp_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, collection string) func() {
	start := time.Now()
	return func() {
		StoreQueryLatency.WithLabelValues(operation, collection).Observe(time.Since(start).Seconds())
	}
}

// RecordLikeToggle increments the like toggle counter.
func RecordLikeToggle(target string, liked bool) {
	direction := "unlike"
	if liked {
		direction = "like"
	}
	LikeToggles.WithLabelValues(target, direction).Inc()
}
