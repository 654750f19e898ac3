package models

import (
	"time"

	id "tandem/pkg/domain"
	dErrors "tandem/pkg/domain-errors"
)

// State is the relationship lifecycle state.
//
// Transitions: pending -> accepted, pending -> declined. There is no
// transition out of declined, and no stored "removed" state: dissolution and
// blocking delete the row outright.
type State string

const (
	StatePending  State = "pending"
	StateAccepted State = "accepted"
	StateDeclined State = "declined"
)

// CanTransitionTo reports whether the lifecycle allows moving to next.
func (s State) CanTransitionTo(next State) bool {
	if s != StatePending {
		return false
	}
	return next == StateAccepted || next == StateDeclined
}

// Relationship is a pairing attempt or agreement between exactly two parties.
//
// Invariants:
//   - InitiatorID is never the responder
//   - ResponderID is nil until the invitation is accepted
//   - Token is single-use: it leaves pending at most once
//   - At most one accepted relationship exists per unordered party pair
type Relationship struct {
	ID          id.RelationshipID `json:"id"`
	InitiatorID id.UserID         `json:"initiator_id"`
	ResponderID *id.UserID        `json:"responder_id,omitempty"`
	State       State             `json:"state"`
	Token       string            `json:"-"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewInvitation builds a pending relationship for a fresh invitation.
func NewInvitation(relationshipID id.RelationshipID, initiator id.UserID, token string, now time.Time) (*Relationship, error) {
	if initiator.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "initiator is required")
	}
	if token == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invitation token is required")
	}
	return &Relationship{
		ID:          relationshipID,
		InitiatorID: initiator,
		State:       StatePending,
		Token:       token,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsMember reports whether the party is the initiator or the responder.
func (r *Relationship) IsMember(party id.UserID) bool {
	if r.InitiatorID == party {
		return true
	}
	return r.ResponderID != nil && *r.ResponderID == party
}

// OtherMember returns the counterpart of the given member, if one exists yet.
func (r *Relationship) OtherMember(party id.UserID) (id.UserID, bool) {
	if r.InitiatorID == party {
		if r.ResponderID == nil {
			return id.UserID{}, false
		}
		return *r.ResponderID, true
	}
	if r.ResponderID != nil && *r.ResponderID == party {
		return r.InitiatorID, true
	}
	return id.UserID{}, false
}
