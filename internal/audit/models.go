package audit

import "time"

// Event is an immutable, append-only audit log record of a management action.
//
// Invariants:
// - Events are never updated or deleted.
// - user_id (the tenant the action touched) is required.
// - Recording is best-effort; audit failures never block the user operation.
type Event struct {
	ID     string    `json:"id" db:"id"`
	UserID string    `json:"user_id" db:"user_id"`
	Type   EventType `json:"type" db:"type"`

	// ActorUserID differs from UserID when an admin acts on a tenant.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// TargetID is the phone number id, call sid, etc.
	TargetID string `json:"target_id,omitempty" db:"target_id"`
	Message  string `json:"message,omitempty" db:"message"`

	Metadata map[string]any `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventNumberPurchased   EventType = "number_purchased"
	EventNumberReleased    EventType = "number_released"
	EventNumberUpdated     EventType = "number_updated"
	EventForwardingUpdated EventType = "forwarding_updated"
	EventForwardingDeleted EventType = "forwarding_deleted"
	EventWhisperUpdated    EventType = "whisper_updated"
	EventWhisperDeleted    EventType = "whisper_deleted"
	EventBalanceCredited   EventType = "balance_credited"
	EventOutboundCall      EventType = "outbound_call"
)
