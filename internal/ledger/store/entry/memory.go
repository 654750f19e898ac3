package entry

import (
	"context"
	"sync"

	"tandem/internal/ledger/models"
	id "tandem/pkg/domain"
	"tandem/pkg/platform/sentinel"
)

type key struct {
	party        id.UserID
	relationship id.RelationshipID
	boundary     id.BoundaryID
}

// InMemory keeps consent entries in process memory.
type InMemory struct {
	mu   sync.RWMutex
	rows map[key]*models.Entry
}

func NewInMemory() *InMemory {
	return &InMemory{rows: make(map[key]*models.Entry)}
}

func keyOf(e *models.Entry) key {
	return key{party: e.PartyID, relationship: e.RelationshipID, boundary: e.BoundaryID}
}

func (s *InMemory) Upsert(_ context.Context, e *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *e
	s.rows[keyOf(e)] = &clone
	return nil
}

func (s *InMemory) Find(_ context.Context, party id.UserID, relationship id.RelationshipID, boundary id.BoundaryID) (*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rows[key{party: party, relationship: relationship, boundary: boundary}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (s *InMemory) ListByPartyAndRelationship(_ context.Context, party id.UserID, relationship id.RelationshipID) ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Entry
	for _, e := range s.rows {
		if e.PartyID == party && e.RelationshipID == relationship {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out, nil
}

// ListAcceptedBoundariesFor mirrors the postgres store: accepted boundary
// ids per party, without note content.
func (s *InMemory) ListAcceptedBoundariesFor(_ context.Context, parties []id.UserID, relationship id.RelationshipID) (map[id.UserID][]id.BoundaryID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[id.UserID]bool, len(parties))
	for _, p := range parties {
		want[p] = true
	}
	out := make(map[id.UserID][]id.BoundaryID)
	for _, e := range s.rows {
		if e.RelationshipID == relationship && e.Accepted && want[e.PartyID] {
			out[e.PartyID] = append(out[e.PartyID], e.BoundaryID)
		}
	}
	return out, nil
}

func (s *InMemory) Delete(_ context.Context, party id.UserID, relationship id.RelationshipID, boundary id.BoundaryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{party: party, relationship: relationship, boundary: boundary}
	if _, ok := s.rows[k]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.rows, k)
	return nil
}

func (s *InMemory) DeleteByRelationship(_ context.Context, relationship id.RelationshipID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.rows {
		if e.RelationshipID == relationship {
			delete(s.rows, k)
		}
	}
	return nil
}

func (s *InMemory) DeleteByParty(_ context.Context, party id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.rows {
		if e.PartyID == party {
			delete(s.rows, k)
		}
	}
	return nil
}
