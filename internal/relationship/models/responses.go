package models

import id "tandem/pkg/domain"

// InviteResponse returns the new pairing attempt and its single-use token.
type InviteResponse struct {
	RelationshipID  id.RelationshipID `json:"relationship_id"`
	InvitationToken string            `json:"invitation_token"`
}

// InspectResponse describes an invitation to a prospective responder. The
// initiator is exposed as an opaque reference; display resolution belongs to
// the identity service.
type InspectResponse struct {
	RelationshipID id.RelationshipID `json:"relationship_id"`
	InitiatorRef   string            `json:"initiator_ref"`
	State          State             `json:"state"`
}

// StateResponse is returned by accept and decline.
type StateResponse struct {
	RelationshipID id.RelationshipID `json:"relationship_id"`
	State          State             `json:"state"`
}
