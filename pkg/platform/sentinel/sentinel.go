package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// These represent factual states about stored rows, not validation failures:
// - ErrNotFound: row does not exist in store
// - ErrConflict: a uniqueness constraint would be violated
// - ErrAlreadyUsed: single-use resource (invitation token) already consumed
// - ErrInvalidState: row in wrong lifecycle state for the requested change
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
)
