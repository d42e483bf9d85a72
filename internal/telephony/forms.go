package telephony

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Twilio posts application/x-www-form-urlencoded bodies to every voice webhook.
// Ref: https://www.twilio.com/docs/voice/twiml#request-parameters
//
// These parsers only translate the wire form; decisions happen in internal/routing
// and internal/calls.

// InboundForm is the subset of the voice webhook we route on.
type InboundForm struct {
	CallSid       string
	AccountSid    string
	From          string
	To            string
	Direction     string
	CallStatus    string
	CallerName    string
	ForwardedFrom string
}

// StatusForm is a call-progress (statusCallback) event.
type StatusForm struct {
	CallSid        string
	ParentCallSid  string
	AccountSid     string
	From           string
	To             string
	Direction      string
	CallStatus     string
	CallDuration   int
	Price          *decimal.Decimal
	PriceUnit      string
	Timestamp      time.Time
	SequenceNumber int
}

// RecordingForm is a recordingStatusCallback event.
type RecordingForm struct {
	CallSid           string
	AccountSid        string
	RecordingSid      string
	RecordingURL      string
	RecordingStatus   string
	RecordingDuration int
	RecordingChannels int
	RecordingStart    time.Time
}

// ParentOrCallSid returns the call the event should be tracked under. Events for
// a dialled child leg carry the inbound leg in ParentCallSid.
func (f StatusForm) ParentOrCallSid() string {
	if f.ParentCallSid != "" {
		return f.ParentCallSid
	}
	return f.CallSid
}

func ParseInboundForm(r *http.Request) (InboundForm, error) {
	if err := r.ParseForm(); err != nil {
		return InboundForm{}, err
	}
	f := InboundForm{
		CallSid:       strings.TrimSpace(r.PostFormValue("CallSid")),
		AccountSid:    strings.TrimSpace(r.PostFormValue("AccountSid")),
		From:          NormalizePhone(r.PostFormValue("From")),
		To:            NormalizePhone(r.PostFormValue("To")),
		Direction:     r.PostFormValue("Direction"),
		CallStatus:    r.PostFormValue("CallStatus"),
		CallerName:    r.PostFormValue("CallerName"),
		ForwardedFrom: NormalizePhone(r.PostFormValue("ForwardedFrom")),
	}
	if f.CallSid == "" {
		return InboundForm{}, fmt.Errorf("telephony: CallSid missing")
	}
	return f, nil
}

func ParseStatusForm(r *http.Request) (StatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return StatusForm{}, err
	}
	f := StatusForm{
		CallSid:       strings.TrimSpace(r.PostFormValue("CallSid")),
		ParentCallSid: strings.TrimSpace(r.PostFormValue("ParentCallSid")),
		AccountSid:    strings.TrimSpace(r.PostFormValue("AccountSid")),
		From:          NormalizePhone(r.PostFormValue("From")),
		To:            NormalizePhone(r.PostFormValue("To")),
		Direction:     r.PostFormValue("Direction"),
		CallStatus:    strings.TrimSpace(r.PostFormValue("CallStatus")),
		PriceUnit:     r.PostFormValue("PriceUnit"),
	}
	if f.CallSid == "" {
		return StatusForm{}, fmt.Errorf("telephony: CallSid missing")
	}
	if f.CallStatus == "" {
		return StatusForm{}, fmt.Errorf("telephony: CallStatus missing")
	}

	var err error
	if f.CallDuration, err = optionalInt(r, "CallDuration"); err != nil {
		return StatusForm{}, err
	}
	if f.SequenceNumber, err = optionalInt(r, "SequenceNumber"); err != nil {
		return StatusForm{}, err
	}
	if raw := strings.TrimSpace(r.PostFormValue("Price")); raw != "" {
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return StatusForm{}, fmt.Errorf("telephony: Price %q: %w", raw, err)
		}
		// Twilio reports charges as negative amounts.
		p = p.Abs()
		f.Price = &p
	}
	f.Timestamp = optionalTime(r.PostFormValue("Timestamp"))
	return f, nil
}

func ParseRecordingForm(r *http.Request) (RecordingForm, error) {
	if err := r.ParseForm(); err != nil {
		return RecordingForm{}, err
	}
	f := RecordingForm{
		CallSid:         strings.TrimSpace(r.PostFormValue("CallSid")),
		AccountSid:      strings.TrimSpace(r.PostFormValue("AccountSid")),
		RecordingSid:    strings.TrimSpace(r.PostFormValue("RecordingSid")),
		RecordingURL:    strings.TrimSpace(r.PostFormValue("RecordingUrl")),
		RecordingStatus: strings.TrimSpace(r.PostFormValue("RecordingStatus")),
	}
	if f.CallSid == "" || f.RecordingSid == "" {
		return RecordingForm{}, fmt.Errorf("telephony: CallSid and RecordingSid are required")
	}

	var err error
	if f.RecordingDuration, err = optionalInt(r, "RecordingDuration"); err != nil {
		return RecordingForm{}, err
	}
	if f.RecordingChannels, err = optionalInt(r, "RecordingChannels"); err != nil {
		return RecordingForm{}, err
	}
	f.RecordingStart = optionalTime(r.PostFormValue("RecordingStartTime"))
	return f, nil
}

// NormalizePhone trims whitespace. Twilio may send "anonymous" or an empty
// caller; those are kept as-is.
func NormalizePhone(s string) string {
	return strings.TrimSpace(s)
}

// IsE164 reports whether s looks like +<country><subscriber>, 8 to 15 digits.
func IsE164(s string) bool {
	if len(s) < 9 || len(s) > 16 || s[0] != '+' || s[1] == '0' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func optionalInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.PostFormValue(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("telephony: %s must be a non-negative integer, got %q", key, raw)
	}
	return n, nil
}

func optionalTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC1123Z, raw)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
