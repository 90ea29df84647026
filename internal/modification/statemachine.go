package modification

// Event names a workflow transition trigger.
type Event string

const (
	EventSubmit  Event = "submit"
	EventApprove Event = "approve"
	EventReject  Event = "reject"
	EventCancel  Event = "cancel"
	EventApply   Event = "apply"
)

// transitions is the closed legal-edge table. Any (status, event) pair absent
// here is an illegal transition; terminal statuses have no outgoing edges.
var transitions = map[Status]map[Event]Status{
	StatusProposed: {
		EventSubmit: StatusPending,
		EventCancel: StatusCancelled,
	},
	StatusPending: {
		EventApprove: StatusApproved,
		EventReject:  StatusRejected,
		EventCancel:  StatusCancelled,
	},
	StatusApproved: {
		EventApply: StatusApplied,
	},
}

// Next resolves the target status for an event from the given status. It
// returns ErrIllegalTransition for any edge not in the table, leaving the
// caller's entity untouched.
func Next(from Status, event Event) (Status, error) {
	edges, ok := transitions[from]
	if !ok {
		return "", ErrIllegalTransition
	}
	to, ok := edges[event]
	if !ok {
		return "", ErrIllegalTransition
	}
	return to, nil
}
