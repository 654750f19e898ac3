package service

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"tandem/internal/notification/models"
	id "tandem/pkg/domain"
)

const signalChannelPrefix = "tandem:notify:"

// RedisSignaler publishes a wake-up message per persisted notification so
// the delivery channel can poll immediately instead of on its next tick.
type RedisSignaler struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisSignaler(client *redis.Client, logger *slog.Logger) *RedisSignaler {
	return &RedisSignaler{client: client, logger: logger}
}

func (s *RedisSignaler) Signal(ctx context.Context, recipient id.UserID, kind models.Kind) {
	channel := signalChannelPrefix + recipient.String()
	if err := s.client.Publish(ctx, channel, string(kind)).Err(); err != nil {
		// Advisory only; the poller will pick the row up on its own schedule.
		s.logger.WarnContext(ctx, "notification signal failed",
			"recipient_id", recipient,
			"error", err,
		)
	}
}
