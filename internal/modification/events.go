package modification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WorkflowEvent is emitted after every successful transition. From is empty
// for the initial proposal.
type WorkflowEvent struct {
	ModificationID uuid.UUID `json:"modification_id"`
	From           Status    `json:"from"`
	To             Status    `json:"to"`
	ActorID        int64     `json:"actor_id"`
	ProposerID     int64     `json:"proposer_id"`
	Title          string    `json:"title"`
	At             time.Time `json:"at"`
}

// Notifier is the outbound notification boundary. Delivery and retry are the
// dispatcher's responsibility; the coordinator only awaits the hand-off.
type Notifier interface {
	Emit(ctx context.Context, event WorkflowEvent) error
}

// Applier materialises an approved change against the targeted asset when the
// modification is applied.
//
// ApplyChange runs before the status flip is persisted, so a persist failure
// can leave the asset patched while the modification stays APPROVED. The
// payload must therefore carry absolute field values, never deltas: retrying
// the apply re-patches the asset to the same state and converges.
type Applier interface {
	ApplyChange(ctx context.Context, assetID int64, payload json.RawMessage) error
}
