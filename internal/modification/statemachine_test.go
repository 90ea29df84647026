package modification

import (
	"errors"
	"testing"
)

func TestNextLegalEdges(t *testing.T) {
	cases := []struct {
		from  Status
		event Event
		to    Status
	}{
		{StatusProposed, EventSubmit, StatusPending},
		{StatusProposed, EventCancel, StatusCancelled},
		{StatusPending, EventApprove, StatusApproved},
		{StatusPending, EventReject, StatusRejected},
		{StatusPending, EventCancel, StatusCancelled},
		{StatusApproved, EventApply, StatusApplied},
	}
	for _, tc := range cases {
		got, err := Next(tc.from, tc.event)
		if err != nil {
			t.Fatalf("%s/%s: unexpected error %v", tc.from, tc.event, err)
		}
		if got != tc.to {
			t.Fatalf("%s/%s: expected %s, got %s", tc.from, tc.event, tc.to, got)
		}
	}
}

func TestNextRejectsUnlistedEdges(t *testing.T) {
	illegal := []struct {
		from  Status
		event Event
	}{
		{StatusProposed, EventApprove},
		{StatusProposed, EventReject},
		{StatusProposed, EventApply},
		{StatusPending, EventSubmit},
		{StatusPending, EventApply},
		{StatusApproved, EventSubmit},
		{StatusApproved, EventApprove},
		{StatusApproved, EventReject},
		{StatusApproved, EventCancel},
	}
	for _, tc := range illegal {
		if _, err := Next(tc.from, tc.event); !errors.Is(err, ErrIllegalTransition) {
			t.Fatalf("%s/%s: expected ErrIllegalTransition, got %v", tc.from, tc.event, err)
		}
	}
}

func TestTerminalStatusesHaveNoEdges(t *testing.T) {
	events := []Event{EventSubmit, EventApprove, EventReject, EventCancel, EventApply}
	for _, status := range []Status{StatusApplied, StatusRejected, StatusCancelled} {
		if !status.Terminal() {
			t.Fatalf("%s should be terminal", status)
		}
		for _, event := range events {
			if _, err := Next(status, event); !errors.Is(err, ErrIllegalTransition) {
				t.Fatalf("%s/%s: expected ErrIllegalTransition, got %v", status, event, err)
			}
		}
	}
}

func TestNonTerminalStatuses(t *testing.T) {
	for _, status := range []Status{StatusProposed, StatusPending, StatusApproved} {
		if status.Terminal() {
			t.Fatalf("%s should not be terminal", status)
		}
	}
}
