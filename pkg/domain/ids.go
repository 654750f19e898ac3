// Package domain holds typed identifiers shared across verticals. Typed IDs
// prevent a user id from being passed where a relationship id is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "tandem/pkg/domain-errors"
)

// UserID identifies a party. Parties are owned by the identity service; this
// core only references them.
type UserID uuid.UUID

// RelationshipID identifies a pairing between two parties.
type RelationshipID uuid.UUID

// NotificationID identifies a notification row.
type NotificationID uuid.UUID

// BoundaryID identifies a catalog boundary. The catalog is static reference
// data keyed by slug, so this is a string rather than a UUID.
type BoundaryID string

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id RelationshipID) String() string { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }
func (id BoundaryID) String() string     { return string(id) }

func (id UserID) IsZero() bool         { return uuid.UUID(id) == uuid.Nil }
func (id RelationshipID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// Text marshaling so the typed IDs render as UUID strings in JSON and logs.

func (id UserID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id RelationshipID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id NotificationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = UserID(parsed)
	return nil
}

func (id *RelationshipID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = RelationshipID(parsed)
	return nil
}

func (id *NotificationID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = NotificationID(parsed)
	return nil
}

// NewUserID returns a fresh random user id.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewRelationshipID returns a fresh random relationship id.
func NewRelationshipID() RelationshipID { return RelationshipID(uuid.New()) }

// NewNotificationID returns a fresh random notification id.
func NewNotificationID() NotificationID { return NotificationID(uuid.New()) }

func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	if len(raw) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is too long")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return parsed, nil
}

// ParseUserID validates raw input at a trust boundary.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return UserID(uuid.Nil), err
	}
	return UserID(parsed), nil
}

// ParseRelationshipID validates raw input at a trust boundary.
func ParseRelationshipID(raw string) (RelationshipID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return RelationshipID(uuid.Nil), err
	}
	return RelationshipID(parsed), nil
}

// ParseNotificationID validates raw input at a trust boundary.
func ParseNotificationID(raw string) (NotificationID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return NotificationID(uuid.Nil), err
	}
	return NotificationID(parsed), nil
}
