package block

import (
	"context"
	"sync"

	"tandem/internal/relationship/models"
	id "tandem/pkg/domain"
	"tandem/pkg/platform/sentinel"
)

type pair struct {
	blocker id.UserID
	blocked id.UserID
}

// InMemory keeps block records in process memory.
type InMemory struct {
	mu     sync.RWMutex
	blocks map[pair]*models.Block
}

func NewInMemory() *InMemory {
	return &InMemory{blocks: make(map[pair]*models.Block)}
}

func (s *InMemory) Create(_ context.Context, b *models.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pair{blocker: b.BlockerID, blocked: b.BlockedID}
	if _, exists := s.blocks[key]; exists {
		return sentinel.ErrConflict
	}
	clone := *b
	s.blocks[key] = &clone
	return nil
}

// ExistsBetween reports whether a block exists in either direction.
func (s *InMemory) ExistsBetween(_ context.Context, a, b id.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.blocks[pair{blocker: a, blocked: b}]; ok {
		return true, nil
	}
	_, ok := s.blocks[pair{blocker: b, blocked: a}]
	return ok, nil
}
