package routing

// Decision is what the router resolved for an inbound call, before it is
// rendered to TwiML. It carries only what the renderer needs.
type Decision struct {
	UserID   string `json:"user_id,omitempty"`
	NumberID string `json:"number_id,omitempty"`
	Called   string `json:"called"`
	Caller   string `json:"caller"`

	Action             Action `json:"action"`
	ForwardTo          string `json:"forward_to,omitempty"`
	RingTimeoutSeconds int    `json:"ring_timeout_seconds,omitempty"`
	Whisper            bool   `json:"whisper,omitempty"`

	// Reason is for logs and metrics.
	Reason string `json:"reason,omitempty"`
}

type Action string

const (
	ActionNotInService Action = "not_in_service"
	ActionUnavailable  Action = "unavailable"
	ActionForward      Action = "forward"
)

// WhisperDecision is what the callee hears before the bridge.
type WhisperDecision struct {
	Action   WhisperAction `json:"action"`
	Text     string        `json:"text,omitempty"`
	Voice    string        `json:"voice,omitempty"`
	Language string        `json:"language,omitempty"`
	URL      string        `json:"url,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

type WhisperAction string

const (
	// WhisperNone bridges immediately.
	WhisperNone WhisperAction = "none"
	WhisperSay  WhisperAction = "say"
	WhisperPlay WhisperAction = "play"
)

const (
	MessageNotInService = "The number you have dialed is not in service."
	MessageUnavailable  = "We're sorry, no one is available to take your call. Please try again later."
	// DefaultWhisperText is spoken when a play-mode whisper has no usable audio.
	DefaultWhisperText = "Incoming call for {label} from {caller}."
)
