package store

import (
	"context"
	"sort"
	"sync"

	"tandem/internal/notification/models"
	id "tandem/pkg/domain"
	"tandem/pkg/platform/sentinel"
)

// InMemory keeps notifications in process memory. Used by tests and by local
// development without a database.
type InMemory struct {
	mu   sync.RWMutex
	rows map[id.NotificationID]*models.Notification
}

func NewInMemory() *InMemory {
	return &InMemory{rows: make(map[id.NotificationID]*models.Notification)}
}

func (s *InMemory) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[n.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *n
	s.rows[n.ID] = &clone
	return nil
}

func (s *InMemory) ListByRecipient(_ context.Context, recipient id.UserID) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Notification
	for _, n := range s.rows {
		if n.RecipientID == recipient {
			clone := *n
			out = append(out, &clone)
		}
	}
	// newest first, matching the postgres store's ORDER BY
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) CountUnread(_ context.Context, recipient id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.rows {
		if n.RecipientID == recipient && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *InMemory) MarkRead(_ context.Context, notificationID id.NotificationID, recipient id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[notificationID]
	if !ok || n.RecipientID != recipient {
		return sentinel.ErrNotFound
	}
	n.Read = true
	return nil
}

func (s *InMemory) MarkAllRead(_ context.Context, recipient id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.rows {
		if n.RecipientID == recipient {
			n.Read = true
		}
	}
	return nil
}

func (s *InMemory) ClearRelationship(_ context.Context, relationshipID id.RelationshipID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.rows {
		if n.RelationshipID != nil && *n.RelationshipID == relationshipID {
			n.RelationshipID = nil
		}
	}
	return nil
}

func (s *InMemory) DeleteByRecipient(_ context.Context, recipient id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for nid, n := range s.rows {
		if n.RecipientID == recipient {
			delete(s.rows, nid)
		}
	}
	return nil
}
