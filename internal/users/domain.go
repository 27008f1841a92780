package users

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = errors.New("users: not found")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("users: email already in use")
	// ErrInvalidInput indicates the submitted fields failed validation.
	ErrInvalidInput = errors.New("users: invalid input")
)

// User represents a staff account.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
