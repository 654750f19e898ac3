package audit

import "time"

// Action names the lifecycle or ledger transition being audited.
type Action string

const (
	ActionInvitationCreated  Action = "invitation_created"
	ActionInvitationAccepted Action = "invitation_accepted"
	ActionInvitationDeclined Action = "invitation_declined"
	ActionRelationshipEnded  Action = "relationship_ended"
	ActionPairBlocked        Action = "pair_blocked"
	ActionLedgerUpdated      Action = "ledger_updated"
	ActionAccountRemoved     Action = "account_removed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp      time.Time `json:"timestamp"`
	ActorID        string    `json:"actor_id"`
	Action         Action    `json:"action"`
	RelationshipID string    `json:"relationship_id,omitempty"`
	Detail         string    `json:"detail,omitempty"`
}
