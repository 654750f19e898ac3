package models

import (
	"strings"
	"time"

	id "tandem/pkg/domain"
	dErrors "tandem/pkg/domain-errors"
)

// Entry is one party's stored decision for one boundary within one
// relationship: the unit of the consent ledger.
//
// Invariants:
//   - exactly one row per (party, relationship, boundary)
//   - only the owning party reads or writes the row
//   - the note is never exposed to the other party, under any acceptance state
//   - a note may exist while Accepted is false ("this matters to me")
type Entry struct {
	PartyID        id.UserID         `json:"-"`
	RelationshipID id.RelationshipID `json:"-"`
	BoundaryID     id.BoundaryID     `json:"boundary_id"`
	Accepted       bool              `json:"accepted"`
	Note           string            `json:"note,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// EntryInput is one element of a bulk ledger write. A nil Note preserves the
// stored note; a set Note replaces it.
type EntryInput struct {
	BoundaryID id.BoundaryID `json:"boundary_id"`
	Accepted   bool          `json:"accepted"`
	Note       *string       `json:"note,omitempty"`
}

// SetEntriesRequest is the bulk write payload.
type SetEntriesRequest struct {
	Entries []EntryInput `json:"entries"`
}

// SetNoteRequest attaches a private note to one boundary.
type SetNoteRequest struct {
	Note string `json:"note"`
}

// ValidateNote enforces the non-empty, bounded-length note rule.
func ValidateNote(note string, maxLen int) (string, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return "", dErrors.New(dErrors.CodeValidation, "note must not be empty")
	}
	if len(note) > maxLen {
		return "", dErrors.New(dErrors.CodeValidation, "note exceeds maximum length")
	}
	return note, nil
}
