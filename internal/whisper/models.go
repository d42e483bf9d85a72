package whisper

import (
	"errors"
	"time"
)

// Config is the announcement played to the callee before bridging. At most
// one exists per owned number.
type Config struct {
	ID       string `json:"id" db:"id"`
	UserID   string `json:"user_id" db:"user_id"`
	NumberID string `json:"phone_number_id" db:"phone_number_id"`
	Enabled  bool   `json:"enabled" db:"enabled"`
	Mode     Mode   `json:"mode" db:"mode"`
	Text     string `json:"text,omitempty" db:"text"`
	Voice    string `json:"voice,omitempty" db:"voice"`
	Language string `json:"language,omitempty" db:"language"`

	// Play sources, in resolution order: AudioKey (object storage),
	// AudioURL (external), Audio (inline blob).
	AudioKey string `json:"audio_key,omitempty" db:"audio_key"`
	AudioURL string `json:"audio_url,omitempty" db:"audio_url"`
	Audio    *Audio `json:"audio,omitempty" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Audio is an inline clip. Data is never serialised to API clients.
type Audio struct {
	Data []byte `json:"-"`
	MIME string `json:"mime"`
	Size int    `json:"size"`
}

type Mode string

const (
	ModeSay  Mode = "say"
	ModePlay Mode = "play"
)

const (
	DefaultVoice    = "alice"
	DefaultLanguage = "en-US"
	maxTextLen      = 500
)

// Voices and languages accepted for text-to-speech.
var (
	allowedVoices = map[string]struct{}{
		"alice": {}, "man": {}, "woman": {},
		"Polly.Joanna": {}, "Polly.Matthew": {}, "Polly.Amy": {}, "Polly.Brian": {},
		"Polly.Celine": {}, "Polly.Conchita": {}, "Polly.Hans": {},
	}
	allowedLanguages = map[string]struct{}{
		"en-US": {}, "en-GB": {}, "en-AU": {}, "es-ES": {}, "es-MX": {},
		"fr-FR": {}, "fr-CA": {}, "de-DE": {}, "it-IT": {}, "pt-BR": {},
	}
)

type UpsertRequest struct {
	Enabled  *bool  `json:"enabled,omitempty"`
	Mode     Mode   `json:"mode"`
	Text     string `json:"text,omitempty"`
	Voice    string `json:"voice,omitempty"`
	Language string `json:"language,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
}

var (
	ErrNotFound        = errors.New("whisper: not found")
	ErrInvalidArgument = errors.New("whisper: invalid argument")
	ErrAudioTooLarge   = errors.New("whisper: audio too large")
)
