package database

import (
	"context"
	"errors"
	"sync"

	"chirp/internal/observability"

	"go.mongodb.org/mongo-driver/event"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Handshake and auth traffic is not application work.
var untracedCommands = map[string]bool{
	"hello": true, "isMaster": true, "ismaster": true,
	"saslStart": true, "saslContinue": true, "authenticate": true,
	"endSessions": true, "killCursors": true,
}

// commandTracer turns driver command events into store spans, one per command.
// Spans are matched to their finish event by request id.
type commandTracer struct {
	mu    sync.Mutex
	spans map[int64]trace.Span
}

func newCommandTracer() *commandTracer {
	return &commandTracer{spans: map[int64]trace.Span{}}
}

// Monitor returns the driver hook for options.Client().SetMonitor.
func (t *commandTracer) Monitor() *event.CommandMonitor {
	return &event.CommandMonitor{
		Started:   t.started,
		Succeeded: func(_ context.Context, e *event.CommandSucceededEvent) { t.finish(e.RequestID, nil) },
		Failed: func(_ context.Context, e *event.CommandFailedEvent) {
			t.finish(e.RequestID, errors.New(e.Failure))
		},
	}
}

func (t *commandTracer) started(ctx context.Context, e *event.CommandStartedEvent) {
	if untracedCommands[e.CommandName] {
		return
	}
	collection, _ := e.Command.Lookup(e.CommandName).StringValueOK()
	if collection == "" {
		collection = "-"
	}
	_, span := observability.TraceStoreOperation(ctx, "mongodb", e.CommandName, collection)

	t.mu.Lock()
	t.spans[e.RequestID] = span
	t.mu.Unlock()
}

func (t *commandTracer) finish(requestID int64, err error) {
	t.mu.Lock()
	span, ok := t.spans[requestID]
	delete(t.spans, requestID)
	t.mu.Unlock()
	if !ok {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
