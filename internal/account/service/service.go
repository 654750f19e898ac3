package service

import (
	"context"
	"log/slog"

	"tandem/internal/audit"
	"tandem/internal/platform/middleware"
	id "tandem/pkg/domain"
	dErrors "tandem/pkg/domain-errors"
)

// RelationshipRemover dissolves every relationship a departing party holds.
type RelationshipRemover interface {
	RemoveAllForUser(ctx context.Context, party id.UserID) error
}

// LedgerRemover deletes the party's consent entries.
type LedgerRemover interface {
	RemoveAllForParty(ctx context.Context, party id.UserID) error
}

// NotificationRemover deletes the party's notification inbox.
type NotificationRemover interface {
	DeleteByRecipient(ctx context.Context, recipient id.UserID) error
}

// AuditPublisher records account removals for compliance.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the account-deletion hook: when an account is removed upstream,
// every trace of the party leaves this system too.
type Service struct {
	relationships RelationshipRemover
	ledger        LedgerRemover
	notifications NotificationRemover
	logger        *slog.Logger
	auditor       AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditor = publisher }
}

// New constructs a Service.
func New(relationships RelationshipRemover, ledger LedgerRemover, notifications NotificationRemover, opts ...Option) *Service {
	s := &Service{
		relationships: relationships,
		ledger:        ledger,
		notifications: notifications,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RemoveUser cascades the removal: relationships first (which clears their
// per-relationship entries and notifies counterparts), then any ledger rows
// left from already-gone relationships, then the party's own inbox.
func (s *Service) RemoveUser(ctx context.Context, party id.UserID) error {
	if err := s.relationships.RemoveAllForUser(ctx, party); err != nil {
		return err
	}
	if err := s.ledger.RemoveAllForParty(ctx, party); err != nil {
		return err
	}
	if err := s.notifications.DeleteByRecipient(ctx, party); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete notifications")
	}

	args := []any{
		"event", string(audit.ActionAccountRemoved),
		"log_type", "audit",
	}
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, string(audit.ActionAccountRemoved), args...)
	if s.auditor != nil {
		_ = s.auditor.Emit(ctx, audit.Event{
			ActorID: party.String(),
			Action:  audit.ActionAccountRemoved,
		})
	}
	return nil
}
