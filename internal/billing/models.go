package billing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Counters is the per-user usage state.
//
// Money invariants:
// - Balance changes only through a recording charge or a credit, each with
//   its own immutable row.
// - A recording is charged at most once (recording_charges keyed by sid).
type Counters struct {
	UserID               string          `json:"user_id" db:"user_id"`
	FreeSecondsRemaining int             `json:"free_seconds_remaining" db:"free_seconds_remaining"`
	LastResetAt          time.Time       `json:"last_reset_at" db:"last_reset_at"`
	Balance              decimal.Decimal `json:"balance" db:"balance"`
	// RatePerMinute overrides the plan rate for this user when set.
	RatePerMinute *decimal.Decimal `json:"rate_per_minute,omitempty" db:"rate_per_minute"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

// Charge is the immutable record of billing one recording.
type Charge struct {
	ID              string          `json:"id" db:"id"`
	UserID          string          `json:"user_id" db:"user_id"`
	CallSID         string          `json:"call_sid" db:"call_sid"`
	RecordingSID    string          `json:"recording_sid" db:"recording_sid"`
	DurationSeconds int             `json:"duration_seconds" db:"duration_seconds"`
	FreeSecondsUsed int             `json:"free_seconds_used" db:"free_seconds_used"`
	BillableMinutes int             `json:"billable_minutes" db:"billable_minutes"`
	Rate            decimal.Decimal `json:"rate" db:"rate"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// Credit is an immutable top-up of the pay-as-you-go balance.
type Credit struct {
	ID             string          `json:"id" db:"id"`
	UserID         string          `json:"user_id" db:"user_id"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Reason         string          `json:"reason" db:"reason"`
	IdempotencyKey string          `json:"idempotency_key" db:"idempotency_key"`
	CreatedBy      string          `json:"created_by" db:"created_by"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

type CreditRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Reason         string          `json:"reason"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// Plan is the injected billing configuration.
type Plan struct {
	FreeMinutes   int
	RatePerMinute decimal.Decimal
	Currency      string
}

func (p Plan) FreeSeconds() int { return p.FreeMinutes * 60 }

// Summary is the usage view returned to the user.
type Summary struct {
	Period                string          `json:"period"`
	PlanFreeMinutes       int             `json:"plan_free_minutes"`
	FreeMinutesUsed       int             `json:"free_minutes_used"`
	FreeMinutesRemaining  int             `json:"free_minutes_remaining"`
	FreeSecondsRemaining  int             `json:"free_seconds_remaining"`
	Balance               decimal.Decimal `json:"balance"`
	Currency              string          `json:"currency"`
	RatePerMinute         decimal.Decimal `json:"rate_per_minute"`
	TotalMinutesAvailable int             `json:"total_minutes_available"`
	LastResetAt           time.Time       `json:"last_reset_at"`
}

var (
	ErrNotFound        = errors.New("billing: not found")
	ErrInvalidArgument = errors.New("billing: invalid argument")
	ErrAlreadyCharged  = errors.New("billing: recording already charged")
)
