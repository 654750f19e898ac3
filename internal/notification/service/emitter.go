package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tandem/internal/notification/models"
	"tandem/internal/platform/metrics"
	"tandem/internal/platform/middleware"
	id "tandem/pkg/domain"
)

// Signaler pokes the external delivery channel after a notification row is
// persisted, so pollers can wake up early. Purely advisory.
type Signaler interface {
	Signal(ctx context.Context, recipient id.UserID, kind models.Kind)
}

// Emitter derives and persists notification rows from ledger and lifecycle
// transitions. Persistence is best-effort: a failed emit is logged and
// counted, never propagated, because the triggering write is the operation
// of record.
type Emitter struct {
	store    Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
	signaler Signaler
	now      func() time.Time
}

type EmitterOption func(*Emitter)

func WithEmitterMetrics(m *metrics.Metrics) EmitterOption {
	return func(e *Emitter) { e.metrics = m }
}

func WithSignaler(s Signaler) EmitterOption {
	return func(e *Emitter) { e.signaler = s }
}

func WithEmitterClock(now func() time.Time) EmitterOption {
	return func(e *Emitter) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEmitter(store Store, logger *slog.Logger, opts ...EmitterOption) *Emitter {
	e := &Emitter{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InvitationAccepted notifies the initiator that their invitation was accepted.
func (e *Emitter) InvitationAccepted(ctx context.Context, initiator, responder id.UserID, relationshipID id.RelationshipID) {
	e.emit(ctx, &models.Notification{
		RecipientID:    initiator,
		Kind:           models.KindInvitationAccepted,
		Title:          "Invitation accepted",
		Message:        "Your invitation was accepted. You can now mark your boundaries.",
		RelatedUserID:  &responder,
		RelationshipID: &relationshipID,
	})
}

// RelationshipDeleted notifies the other member after a dissolve or block.
// The relationship row is already gone, so no reference is recorded.
func (e *Emitter) RelationshipDeleted(ctx context.Context, recipient, actor id.UserID) {
	e.emit(ctx, &models.Notification{
		RecipientID:   recipient,
		Kind:          models.KindRelationshipDeleted,
		Title:         "Relationship ended",
		Message:       "Your relationship was ended. All shared boundaries have been removed.",
		RelatedUserID: &actor,
	})
}

// NewCommonLimit notifies both parties that a boundary just became common.
// Each message is framed from the recipient's own point of view and carries
// only the boundary label, never either party's note.
func (e *Emitter) NewCommonLimit(ctx context.Context, partyA, partyB id.UserID, relationshipID id.RelationshipID, boundaryLabel string) {
	message := fmt.Sprintf("You and your partner both accepted %q.", boundaryLabel)
	for _, pair := range [][2]id.UserID{{partyA, partyB}, {partyB, partyA}} {
		recipient, other := pair[0], pair[1]
		e.emit(ctx, &models.Notification{
			RecipientID:    recipient,
			Kind:           models.KindNewCommonLimit,
			Title:          "New shared boundary",
			Message:        message,
			RelatedUserID:  &other,
			RelationshipID: &relationshipID,
		})
	}
}

// LimitRemoved notifies only the party who did not uncheck; the actor
// already knows.
func (e *Emitter) LimitRemoved(ctx context.Context, recipient, actor id.UserID, relationshipID id.RelationshipID, boundaryLabel string) {
	e.emit(ctx, &models.Notification{
		RecipientID:    recipient,
		Kind:           models.KindLimitRemoved,
		Title:          "Shared boundary removed",
		Message:        fmt.Sprintf("Your partner withdrew %q.", boundaryLabel),
		RelatedUserID:  &actor,
		RelationshipID: &relationshipID,
	})
}

func (e *Emitter) emit(ctx context.Context, n *models.Notification) {
	n.ID = id.NewNotificationID()
	n.CreatedAt = e.now()

	if err := e.store.Create(ctx, n); err != nil {
		e.logger.ErrorContext(ctx, "failed to persist notification",
			"kind", n.Kind,
			"recipient_id", n.RecipientID,
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		if e.metrics != nil {
			e.metrics.NotificationsDropped.Inc()
		}
		return
	}
	if e.metrics != nil {
		e.metrics.NotificationsEmitted.WithLabelValues(string(n.Kind)).Inc()
	}
	if e.signaler != nil {
		e.signaler.Signal(ctx, n.RecipientID, n.Kind)
	}
}
