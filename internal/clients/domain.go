package clients

import (
	"errors"
	"time"
)

// Errors returned by the clients module.
var (
	ErrNotFound       = errors.New("clients: not found")
	ErrIdentityLocked = errors.New("clients: identity fields locked by existing sales")
	ErrHasSales       = errors.New("clients: client has sales")
	ErrInvalidInput   = errors.New("clients: invalid input")
)

// Client is a land buyer. Identity fields (name, national ID) freeze once any
// sale references the client; contact fields stay editable so the office can
// keep reaching the buyer over a multi-year installment plan.
type Client struct {
	ID         int64     `json:"id"`
	FullName   string    `json:"full_name"`
	NationalID string    `json:"national_id"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email,omitempty"`
	Address    string    `json:"address,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
