package service

import (
	"context"
	"errors"

	"tandem/internal/notification/models"
	id "tandem/pkg/domain"
	dErrors "tandem/pkg/domain-errors"
	"tandem/pkg/platform/sentinel"
)

// Store is the persistence surface the notification vertical needs.
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByRecipient(ctx context.Context, recipient id.UserID) ([]*models.Notification, error)
	CountUnread(ctx context.Context, recipient id.UserID) (int, error)
	MarkRead(ctx context.Context, notificationID id.NotificationID, recipient id.UserID) error
	MarkAllRead(ctx context.Context, recipient id.UserID) error
	ClearRelationship(ctx context.Context, relationshipID id.RelationshipID) error
	DeleteByRecipient(ctx context.Context, recipient id.UserID) error
}

// Service exposes recipient-facing reads and read-flag updates. Scoping by
// the authenticated recipient happens in the store queries, so one party can
// never list or mark another party's rows.
type Service struct {
	store Store
}

func New(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context, recipient id.UserID) ([]*models.Notification, error) {
	out, err := s.store.ListByRecipient(ctx, recipient)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	return out, nil
}

func (s *Service) UnreadCount(ctx context.Context, recipient id.UserID) (int, error) {
	count, err := s.store.CountUnread(ctx, recipient)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count notifications")
	}
	return count, nil
}

func (s *Service) MarkRead(ctx context.Context, notificationID id.NotificationID, recipient id.UserID) error {
	if err := s.store.MarkRead(ctx, notificationID, recipient); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "notification not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notification read")
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, recipient id.UserID) error {
	if err := s.store.MarkAllRead(ctx, recipient); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notifications read")
	}
	return nil
}
