// Package notify fans workflow transitions out to in-app notifications and
// email. Delivery happens on the worker; the HTTP process only enqueues.
package notify

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Notification kinds.
const (
	KindReviewRequested = "REVIEW_REQUESTED"
	KindDecision        = "DECISION"
	KindApplied         = "APPLIED"
	KindReminder        = "REMINDER"
)

// Notification is one in-app inbox entry.
type Notification struct {
	ID             int64
	UserID         int64
	Kind           string
	Title          string
	Body           string
	ModificationID uuid.UUID
	ReadAt         *time.Time
	CreatedAt      time.Time
}

// Recipient is a user targeted by a notification fan-out.
type Recipient struct {
	ID    int64
	Email string
	Name  string
}

// ErrNotFound indicates the notification does not exist or belongs to
// another user.
var ErrNotFound = errors.New("notify: not found")
