package calls

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one call as seen by the owning user. Dialled child legs are
// folded into their parent, so CallSID is always the leg the provider
// created first.
type Record struct {
	CallSID   string    `json:"call_sid" db:"call_sid"`
	UserID    string    `json:"user_id" db:"user_id"`
	NumberID  string    `json:"number_id,omitempty" db:"phone_number_id"`
	From      string    `json:"from" db:"from_number"`
	To        string    `json:"to" db:"to_number"`
	Direction Direction `json:"direction" db:"direction"`
	Status    Status    `json:"status" db:"status"`

	Price     *decimal.Decimal `json:"price,omitempty" db:"price"`
	PriceUnit string           `json:"price_unit,omitempty" db:"price_unit"`

	StartedAt       *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	DurationSeconds int        `json:"duration_seconds" db:"duration_seconds"`

	Recording *Recording `json:"recording,omitempty"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Recording is stored on the call row (recording_* columns).
type Recording struct {
	SID             string `json:"sid"`
	URL             string `json:"url"`
	DurationSeconds int    `json:"duration_seconds"`
	Channels        int    `json:"channels"`
	Status          string `json:"status"`
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ParseDirection folds Twilio's outbound-api/outbound-dial into outbound.
func ParseDirection(s string) Direction {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "outbound") {
		return DirectionOutbound
	}
	return DirectionInbound
}

type Status string

const (
	StatusQueued     Status = "queued"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusBusy       Status = "busy"
	StatusNoAnswer   Status = "no-answer"
	StatusCanceled   Status = "canceled"
)

var statusRank = map[Status]int{
	StatusQueued:     1,
	StatusRinging:    2,
	StatusInProgress: 3,
	StatusCompleted:  4,
	StatusFailed:     4,
	StatusBusy:       4,
	StatusNoAnswer:   4,
	StatusCanceled:   4,
}

// ParseStatus accepts Twilio CallStatus values. "initiated" is reported for
// outbound legs before they ring and maps to queued.
func ParseStatus(s string) (Status, bool) {
	v := Status(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case "initiated":
		return StatusQueued, true
	case "in_progress", "answered":
		return StatusInProgress, true
	case "no_answer":
		return StatusNoAnswer, true
	case "cancelled":
		return StatusCanceled, true
	}
	_, ok := statusRank[v]
	return v, ok
}

func (s Status) Terminal() bool { return statusRank[s] == statusRank[StatusCompleted] }

// Advance returns the status to keep after observing next. Callbacks can
// arrive out of order: a status never moves backwards and a terminal status
// is never replaced.
func Advance(cur, next Status) Status {
	if cur == "" {
		return next
	}
	if cur.Terminal() || statusRank[next] < statusRank[cur] {
		return cur
	}
	return next
}

// StatusEvent is a call-status callback, already keyed by the parent call.
type StatusEvent struct {
	CallSID         string
	ChildCallSID    string
	From            string
	To              string
	Direction       string
	Status          string
	DurationSeconds int
	Price           *decimal.Decimal
	PriceUnit       string
	Timestamp       time.Time
}

type RecordingEvent struct {
	CallSID         string
	RecordingSID    string
	URL             string
	Status          string
	DurationSeconds int
	Channels        int
}

// InboundCall is what the router knows when the provider first hits us.
type InboundCall struct {
	CallSID  string
	UserID   string
	NumberID string
	From     string
	To       string
}

// OutboundRequest starts a click-to-call: the agent is rung from the owned
// number and, once answered, bridged to To.
type OutboundRequest struct {
	FromNumberID string `json:"from_number_id"`
	AgentNumber  string `json:"agent_number"`
	To           string `json:"to"`
	Record       *bool  `json:"record,omitempty"`
}

const RecordingCompleted = "completed"

var (
	ErrNotFound        = errors.New("calls: not found")
	ErrInvalidArgument = errors.New("calls: invalid argument")
	// ErrUnknownCall is returned for callbacks about calls we never tracked
	// and cannot attribute to an owned number.
	ErrUnknownCall = errors.New("calls: unknown call")
)
