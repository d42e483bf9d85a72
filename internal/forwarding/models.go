package forwarding

import (
	"errors"
	"time"
)

// Rule forwards inbound calls on one owned number. At most one rule exists
// per (user, number).
type Rule struct {
	ID                 string    `json:"id" db:"id"`
	UserID             string    `json:"user_id" db:"user_id"`
	NumberID           string    `json:"phone_number_id" db:"phone_number_id"`
	ForwardTo          string    `json:"forward_to" db:"forward_to"`
	Enabled            bool      `json:"enabled" db:"enabled"`
	Type               Type      `json:"type" db:"type"`
	RingTimeoutSeconds int       `json:"ring_timeout_seconds" db:"ring_timeout_seconds"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// Type is stored for forward compatibility. Every type currently forwards
// unconditionally.
type Type string

const (
	TypeAlways      Type = "always"
	TypeBusy        Type = "busy"
	TypeNoAnswer    Type = "no_answer"
	TypeUnavailable Type = "unavailable"
)

func (t Type) Valid() bool {
	switch t {
	case TypeAlways, TypeBusy, TypeNoAnswer, TypeUnavailable:
		return true
	}
	return false
}

const (
	DefaultRingTimeout = 20
	MinRingTimeout     = 5
	MaxRingTimeout     = 600
)

type UpsertRequest struct {
	ForwardTo          string `json:"forward_to"`
	Enabled            *bool  `json:"enabled,omitempty"`
	Type               Type   `json:"type,omitempty"`
	RingTimeoutSeconds int    `json:"ring_timeout_seconds,omitempty"`
}

var (
	ErrNotFound        = errors.New("forwarding: not found")
	ErrInvalidArgument = errors.New("forwarding: invalid argument")
)
