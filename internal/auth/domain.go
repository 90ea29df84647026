// Package auth handles credential checks and session lifecycle for the
// console. Authorization lives in rbac; this package only establishes who
// the caller is.
package auth

import "time"

// User is the credential view of an account. Role and grants are resolved
// separately per request so role changes take effect without relogin.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
}

// SessionRecord mirrors a server side session row for audit purposes.
type SessionRecord struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	IP        string
	UserAgent string
}
