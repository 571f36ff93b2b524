// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
)

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
}

// Log returns the process logger used by store and websocket events.
func Log() *slog.Logger {
	return current.Load()
}

// SetGlobalLogger swaps the process logger. A nil logger is ignored.
// Store and websocket loggers pick the change up on their next call.
func SetGlobalLogger(l *slog.Logger) {
	if l != nil {
		current.Store(l)
	}
}

// RepoLogger records writes against one table or collection.
// Successful writes log at debug, failures at error.
type RepoLogger struct {
	table string
}

// NewRepoLogger returns a RepoLogger for table.
func NewRepoLogger(table string) RepoLogger {
	return RepoLogger{table: table}
}

func (l RepoLogger) write(ctx context.Context, op string, attrs []slog.Attr) {
	attrs = append(attrs, slog.String("collection", l.table), slog.String("operation", op))
	Log().LogAttrs(ctx, slog.LevelDebug, "repository "+op, attrs...)
}

// Created logs an insert.
func (l RepoLogger) Created(ctx context.Context, attrs ...slog.Attr) { l.write(ctx, "create", attrs) }

// Updated logs an update.
func (l RepoLogger) Updated(ctx context.Context, attrs ...slog.Attr) { l.write(ctx, "update", attrs) }

// Deleted logs a delete.
func (l RepoLogger) Deleted(ctx context.Context, attrs ...slog.Attr) { l.write(ctx, "delete", attrs) }

// Failed logs a failed operation. A nil err is ignored.
func (l RepoLogger) Failed(ctx context.Context, op string, err error) {
	if err == nil {
		return
	}
	Log().LogAttrs(ctx, slog.LevelError, "repository error",
		slog.String("collection", l.table),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// WSLogger records connection events for one hub.
type WSLogger struct {
	hub string
}

// NewWSLogger returns a WSLogger tagged with hub.
func NewWSLogger(hub string) WSLogger {
	return WSLogger{hub: hub}
}

// Connected logs a new socket and the user's socket count after it.
func (l WSLogger) Connected(ctx context.Context, userID string, sockets int) {
	Log().LogAttrs(ctx, slog.LevelInfo, "websocket connected",
		slog.String("hub", l.hub), slog.String("user_id", userID), slog.Int("user_connections", sockets))
}

// Disconnected logs a socket leaving the hub.
func (l WSLogger) Disconnected(ctx context.Context, userID, reason string) {
	Log().LogAttrs(ctx, slog.LevelInfo, "websocket disconnected",
		slog.String("hub", l.hub), slog.String("user_id", userID), slog.String("reason", reason))
}

// Failed logs a socket error during stage. A nil err is ignored.
func (l WSLogger) Failed(ctx context.Context, userID string, err error, stage string) {
	if err == nil {
		return
	}
	Log().LogAttrs(ctx, slog.LevelError, "websocket error",
		slog.String("hub", l.hub), slog.String("user_id", userID),
		slog.String("event_type", stage), slog.String("error", err.Error()))
}

// Event logs a hub event such as a dropped frame or shutdown.
func (l WSLogger) Event(ctx context.Context, event string, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("hub", l.hub), slog.String("event", event))
	Log().LogAttrs(ctx, slog.LevelInfo, "websocket lifecycle", attrs...)
}
