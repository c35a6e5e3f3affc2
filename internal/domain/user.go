// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen = 64
	MaxEmailLen  = 254
)

var (
	ErrEmailTooLong = errors.New("email too long")
	ErrUserIDEmpty  = errors.New("user id empty")
)

type UserID string

type User struct {
	ID        UserID `json:"id"`
	Email     string `json:"email,omitempty"`
	Anonymous bool   `json:"anonymous"`
}

// NewAnonymousUser mints a best-effort identity for callers that present
// no (or an invalid) token.
func NewAnonymousUser() *User {
	return &User{ID: UserID("anon-" + uuid.NewString()), Anonymous: true}
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(id UserID, email string) (*User, error) {
	if id == "" {
		return nil, ErrUserIDEmpty
	}
	if len(email) > MaxEmailLen {
		return nil, ErrEmailTooLong
	}
	return &User{ID: id, Email: email}, nil
}
