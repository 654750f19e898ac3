package audit

import (
	"context"
	"log/slog"
)

// Buffered decouples request handling from the audit sink: Emit enqueues and
// returns immediately, the worker drains to the underlying publisher. When
// the buffer is full the event is dropped rather than blocking a request.
type Buffered struct {
	sink   Publisher
	inbox  chan Event
	logger *slog.Logger
}

func NewBuffered(sink Publisher, size int, logger *slog.Logger) *Buffered {
	if size <= 0 {
		size = 256
	}
	return &Buffered{sink: sink, inbox: make(chan Event, size), logger: logger}
}

func (b *Buffered) Emit(_ context.Context, event Event) error {
	select {
	case b.inbox <- event:
	default:
		b.logger.Warn("audit buffer full, dropping event", "action", event.Action)
	}
	return nil
}

// Run drains the inbox until the context is cancelled.
func (b *Buffered) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-b.inbox:
			if err := b.sink.Emit(ctx, event); err != nil {
				b.logger.Error("audit sink emit failed", "action", event.Action, "error", err)
			}
		}
	}
}
