package audit

import (
	"context"
	"log/slog"
	"time"
)

// Publisher captures structured audit events. Emissions are best-effort: a
// failed emit must never fail the domain operation that produced it.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// LogPublisher writes audit events to the structured log. It is the fallback
// sink when Kafka is not configured and keeps local development dependency-free.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	p.logger.InfoContext(ctx, "audit event",
		"log_type", "audit",
		"action", event.Action,
		"actor_id", event.ActorID,
		"relationship_id", event.RelationshipID,
		"detail", event.Detail,
	)
	return nil
}
