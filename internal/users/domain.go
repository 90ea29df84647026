// Package users manages console accounts: role assignment and explicit
// permission grants. Every mutation here is MANAGE_USERS gated.
package users

import (
	"errors"
	"time"
)

// User represents a console account.
type User struct {
	ID        int64
	Email     string
	Name      string
	Role      string
	Grants    []string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = errors.New("users: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("users: invalid input")
)
