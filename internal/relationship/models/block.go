package models

import (
	"time"

	id "tandem/pkg/domain"
	dErrors "tandem/pkg/domain-errors"
)

// Block is a one-directional pairing veto. Combined with the relationship
// lifecycle it prevents any future invitation between the two parties from
// being accepted, in either direction.
type Block struct {
	BlockerID id.UserID `json:"blocker_id"`
	BlockedID id.UserID `json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewBlock validates the pair before recording a veto.
func NewBlock(blocker, blocked id.UserID, now time.Time) (*Block, error) {
	if blocker.IsZero() || blocked.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "both parties are required")
	}
	if blocker == blocked {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "a party cannot block themselves")
	}
	return &Block{BlockerID: blocker, BlockedID: blocked, CreatedAt: now}, nil
}
