package routing

import (
	"net/url"
	"strings"
)

// Webhook paths, relative to the public base URL.
const (
	PathVoice        = "/webhooks/twilio/voice"
	PathWhisper      = "/webhooks/twilio/whisper"
	PathWhisperAudio = "/webhooks/twilio/whisper/audio"
	PathStatus       = "/webhooks/twilio/status"
	PathRecording    = "/webhooks/twilio/recording"
	PathConnect      = "/webhooks/twilio/outbound/connect"
)

// Callbacks builds the absolute URLs handed to Twilio.
type Callbacks struct {
	BaseURL string
}

func NewCallbacks(baseURL string) Callbacks {
	return Callbacks{BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}
}

func (c Callbacks) VoiceURL() string     { return c.BaseURL + PathVoice }
func (c Callbacks) StatusURL() string    { return c.BaseURL + PathStatus }
func (c Callbacks) RecordingURL() string { return c.BaseURL + PathRecording }

// WhisperURL carries the called and caller numbers so the whisper callback
// can resolve the config and fill {caller}.
func (c Callbacks) WhisperURL(called, caller string) string {
	q := url.Values{}
	q.Set("called", called)
	q.Set("caller", caller)
	return c.BaseURL + PathWhisper + "?" + q.Encode()
}

// WhisperAudioURL serves an inline clip stored in Postgres.
func (c Callbacks) WhisperAudioURL(numberID string) string {
	return c.BaseURL + PathWhisperAudio + "/" + url.PathEscape(numberID)
}

// ConnectURL is the answer URL for the agent leg of a click-to-call.
func (c Callbacks) ConnectURL(to, callerID string, record bool) string {
	q := url.Values{}
	q.Set("to", to)
	q.Set("from", callerID)
	if record {
		q.Set("record", "1")
	} else {
		q.Set("record", "0")
	}
	return c.BaseURL + PathConnect + "?" + q.Encode()
}
