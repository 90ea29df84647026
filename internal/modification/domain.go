// Package modification implements the change-control core: the modification
// entity, its state machine, and the workflow coordinator that drives every
// transition through authorization, persistence, and event emission.
package modification

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status enumerates the modification lifecycle states.
type Status string

const (
	StatusProposed  Status = "PROPOSED"
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusApplied   Status = "APPLIED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether no further transition is legal from the status.
func (s Status) Terminal() bool {
	switch s {
	case StatusApplied, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// HistoryEntry is one immutable decision record. History is append-only:
// entries are never edited or reordered after a transition commits.
type HistoryEntry struct {
	ActorID   int64
	ActorName string
	Action    string
	Comment   string
	At        time.Time
}

// Modification is a proposed change against one infrastructure asset. The
// payload is opaque to the workflow core; only the asset applier interprets
// it when an approved modification is applied.
type Modification struct {
	ID         uuid.UUID
	AssetID    int64
	Title      string
	Payload    json.RawMessage
	ProposerID int64
	Status     Status
	History    []HistoryEntry
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

var (
	// ErrNotFound indicates the referenced modification does not exist.
	ErrNotFound = errors.New("modification: not found")
	// ErrIllegalTransition indicates the requested transition is not valid
	// from the current status, including separation-of-duties violations.
	// The caller holds a stale view and should refresh before retrying.
	ErrIllegalTransition = errors.New("modification: illegal transition")
	// ErrUnauthorized indicates the actor lacks the required permission.
	ErrUnauthorized = errors.New("modification: unauthorized")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("modification: invalid input")
	// ErrPersistence indicates the durable write failed. The entity was not
	// mutated; the operation may be retried.
	ErrPersistence = errors.New("modification: persistence failure")
)
