package relationship

import (
	"context"
	"sync"
	"time"

	"tandem/internal/relationship/models"
	id "tandem/pkg/domain"
	"tandem/pkg/platform/sentinel"
)

// InMemory keeps relationships in process memory with the same conditional
// transition semantics as the postgres store.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[id.RelationshipID]*models.Relationship
	byToken map[string]id.RelationshipID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[id.RelationshipID]*models.Relationship),
		byToken: make(map[string]id.RelationshipID),
	}
}

func (s *InMemory) Create(_ context.Context, r *models.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[r.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byToken[r.Token]; exists {
		return sentinel.ErrConflict
	}
	clone := *r
	s.byID[r.ID] = &clone
	s.byToken[r.Token] = r.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, relationshipID id.RelationshipID) (*models.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[relationshipID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *r
	return &clone, nil
}

func (s *InMemory) FindByToken(_ context.Context, token string) (*models.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	relationshipID, ok := s.byToken[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.byID[relationshipID]
	return &clone, nil
}

// AcceptIfPending transitions to accepted only when the row is still pending.
// Returns false when another call already consumed the token, and
// ErrConflict when the pair already holds an accepted relationship through a
// different row; the pair check lives inside the critical section to match
// the unique index the postgres store relies on.
func (s *InMemory) AcceptIfPending(_ context.Context, relationshipID id.RelationshipID, responder id.UserID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[relationshipID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if r.State != models.StatePending {
		return false, nil
	}
	for _, existing := range s.byID {
		if existing.State != models.StateAccepted || existing.ResponderID == nil {
			continue
		}
		if (existing.InitiatorID == r.InitiatorID && *existing.ResponderID == responder) ||
			(existing.InitiatorID == responder && *existing.ResponderID == r.InitiatorID) {
			return false, sentinel.ErrConflict
		}
	}
	r.State = models.StateAccepted
	r.ResponderID = &responder
	r.UpdatedAt = now
	return true, nil
}

// DeclineIfPending transitions to declined only when the row is still pending.
func (s *InMemory) DeclineIfPending(_ context.Context, relationshipID id.RelationshipID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[relationshipID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if r.State != models.StatePending {
		return false, nil
	}
	r.State = models.StateDeclined
	r.UpdatedAt = now
	return true, nil
}

func (s *InMemory) Delete(_ context.Context, relationshipID id.RelationshipID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[relationshipID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byToken, r.Token)
	delete(s.byID, relationshipID)
	return nil
}

// FindAcceptedBetween looks up the accepted relationship for an unordered pair.
func (s *InMemory) FindAcceptedBetween(_ context.Context, a, b id.UserID) (*models.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.byID {
		if r.State != models.StateAccepted || r.ResponderID == nil {
			continue
		}
		if (r.InitiatorID == a && *r.ResponderID == b) || (r.InitiatorID == b && *r.ResponderID == a) {
			clone := *r
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// ListByMember returns every relationship the party participates in.
func (s *InMemory) ListByMember(_ context.Context, party id.UserID) ([]*models.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Relationship
	for _, r := range s.byID {
		if r.IsMember(party) {
			clone := *r
			out = append(out, &clone)
		}
	}
	return out, nil
}
