package models

import (
	id "tandem/pkg/domain"
)

// CommonBoundary is one boundary both parties accepted. OwnNote is the
// caller's own note only; the other party's note never crosses this type.
type CommonBoundary struct {
	BoundaryID id.BoundaryID `json:"boundary_id"`
	Label      string        `json:"label"`
	Category   string        `json:"category"`
	OwnNote    string        `json:"own_note,omitempty"`
}

// MatchList carries the relationship state alongside the intersection so an
// empty result from a pending invitation is distinguishable from an accepted
// relationship with no overlap yet.
type MatchList struct {
	State   string           `json:"state"`
	Matches []CommonBoundary `json:"matches"`
}

// MatchesResponse is the read-model for the common-boundaries view.
type MatchesResponse struct {
	RelationshipID id.RelationshipID `json:"relationship_id"`
	State          string            `json:"state"`
	Count          int               `json:"count"`
	Matches        []CommonBoundary  `json:"matches"`
}
