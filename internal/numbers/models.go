package numbers

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// OwnedNumber is a purchased number. A number is owned by exactly one user at
// a time: the unique index covers rows that have not been released.
type OwnedNumber struct {
	ID          string          `json:"id" db:"id"`
	UserID      string          `json:"user_id" db:"user_id"`
	Number      string          `json:"number" db:"number"`
	ProviderSID string          `json:"provider_sid" db:"provider_sid"`
	Label       string          `json:"label" db:"label"`
	Active      bool            `json:"active" db:"active"`
	Capability  Capabilities    `json:"capabilities" db:"capabilities"`
	MonthlyCost decimal.Decimal `json:"monthly_cost" db:"monthly_cost"`

	ReleasedAt *time.Time `json:"released_at,omitempty" db:"released_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// Capabilities is stored as a JSON column.
type Capabilities struct {
	Voice bool `json:"voice"`
	SMS   bool `json:"sms"`
	MMS   bool `json:"mms"`
	Fax   bool `json:"fax"`
}

// DefaultCapabilities is what we assume for a local voice number when the
// stored column is missing or unreadable.
var DefaultCapabilities = Capabilities{Voice: true}

// DisplayLabel is what callees hear for {label}.
func (n OwnedNumber) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.Number
}

// Routable reports whether inbound calls should be handled for this number.
func (n OwnedNumber) Routable() bool {
	return n.Active && n.ReleasedAt == nil
}

type PurchaseRequest struct {
	Number string `json:"number"`
	Label  string `json:"label"`
}

type UpdateRequest struct {
	Label  *string `json:"label,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

var (
	ErrNotFound        = errors.New("numbers: not found")
	ErrInvalidArgument = errors.New("numbers: invalid argument")
	ErrConflict        = errors.New("numbers: number already owned")
)
