package telephony

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func formRequest(v url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", strings.NewReader(v.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestParseInboundForm(t *testing.T) {
	f, err := ParseInboundForm(formRequest(url.Values{
		"CallSid": {"CA1"},
		"From":    {" +15550000002 "},
		"To":      {"+15550000001"},
	}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.From != "+15550000002" || f.To != "+15550000001" {
		t.Fatalf("unexpected form %+v", f)
	}

	if _, err := ParseInboundForm(formRequest(url.Values{"From": {"+1"}})); err == nil {
		t.Fatalf("expected error without CallSid")
	}
}

func TestParseStatusForm(t *testing.T) {
	f, err := ParseStatusForm(formRequest(url.Values{
		"CallSid":       {"CA2"},
		"ParentCallSid": {"CA1"},
		"CallStatus":    {"completed"},
		"CallDuration":  {"42"},
		"Price":         {"-0.0085"},
		"Timestamp":     {"Tue, 03 Feb 2026 10:00:00 +0000"},
	}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.ParentOrCallSid() != "CA1" {
		t.Fatalf("expected parent sid, got %q", f.ParentOrCallSid())
	}
	if f.CallDuration != 42 {
		t.Fatalf("expected 42, got %d", f.CallDuration)
	}
	if f.Price == nil || f.Price.String() != "0.0085" {
		t.Fatalf("expected absolute price 0.0085, got %v", f.Price)
	}
	if f.Timestamp.IsZero() || f.Timestamp.Hour() != 10 {
		t.Fatalf("unexpected timestamp %v", f.Timestamp)
	}
}

func TestParseStatusForm_RejectsMalformedDuration(t *testing.T) {
	_, err := ParseStatusForm(formRequest(url.Values{
		"CallSid":      {"CA2"},
		"CallStatus":   {"completed"},
		"CallDuration": {"forty"},
	}))
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseStatusForm_NoParentUsesCallSid(t *testing.T) {
	f, err := ParseStatusForm(formRequest(url.Values{"CallSid": {"CA9"}, "CallStatus": {"ringing"}}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.ParentOrCallSid() != "CA9" {
		t.Fatalf("expected CA9, got %q", f.ParentOrCallSid())
	}
}

func TestParseRecordingForm(t *testing.T) {
	f, err := ParseRecordingForm(formRequest(url.Values{
		"CallSid":           {"CA1"},
		"RecordingSid":      {"RE1"},
		"RecordingUrl":      {"https://api.twilio.com/rec/RE1"},
		"RecordingStatus":   {"completed"},
		"RecordingDuration": {"900"},
		"RecordingChannels": {"2"},
	}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.RecordingDuration != 900 || f.RecordingChannels != 2 {
		t.Fatalf("unexpected form %+v", f)
	}

	if _, err := ParseRecordingForm(formRequest(url.Values{"CallSid": {"CA1"}})); err == nil {
		t.Fatalf("expected error without RecordingSid")
	}
}

func TestIsE164(t *testing.T) {
	cases := map[string]bool{
		"+15550000001":  true,
		"+442071838750": true,
		"15550000001":   false,
		"+0123456789":   false,
		"+1555abc0001":  false,
		"+1":            false,
	}
	for in, want := range cases {
		if got := IsE164(in); got != want {
			t.Fatalf("IsE164(%q)=%v want %v", in, got, want)
		}
	}
}
