package roles

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the role does not exist.
	ErrNotFound = errors.New("roles: not found")
	// ErrNameRequired indicates a blank role name.
	ErrNameRequired = errors.New("roles: name required")
	// ErrNameTaken indicates a duplicate role name.
	ErrNameTaken = errors.New("roles: name already in use")
)

// Role represents a named permission grouping managed by administrators.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
