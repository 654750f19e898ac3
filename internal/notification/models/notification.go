package models

import (
	"time"

	id "tandem/pkg/domain"
)

// Kind enumerates the notification classes the emitter may produce.
type Kind string

const (
	KindInvitationAccepted  Kind = "invitation_accepted"
	KindRelationshipDeleted Kind = "relationship_deleted"
	KindNewCommonLimit      Kind = "new_common_limit"
	KindLimitRemoved        Kind = "limit_removed"
)

// Valid reports whether k is a known notification kind.
func (k Kind) Valid() bool {
	switch k {
	case KindInvitationAccepted, KindRelationshipDeleted, KindNewCommonLimit, KindLimitRemoved:
		return true
	}
	return false
}

// Notification is an asynchronous event record for one party. Rows are
// produced by the emitter and consumed by the external delivery channel;
// the recipient only ever flips the read flag.
//
// Invariants:
//   - Kind is one of the enumerated values
//   - RecipientID is never zero
//   - Message never contains another party's note content
type Notification struct {
	ID             id.NotificationID  `json:"id"`
	RecipientID    id.UserID          `json:"recipient_id"`
	Kind           Kind               `json:"kind"`
	Title          string             `json:"title"`
	Message        string             `json:"message"`
	RelatedUserID  *id.UserID         `json:"related_user_id,omitempty"`
	RelationshipID *id.RelationshipID `json:"relationship_id,omitempty"`
	Read           bool               `json:"read"`
	CreatedAt      time.Time          `json:"created_at"`
}
