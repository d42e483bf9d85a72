package telephony

import (
	"strings"
	"testing"
)

func TestRender_SayThenHangup(t *testing.T) {
	xml, err := NewResponse().
		Say(Say{Text: "The number you have dialed is not in service."}).
		Hangup().
		Render()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	sayAt := strings.Index(xml, "<Say>The number you have dialed is not in service.</Say>")
	hangAt := strings.Index(xml, "<Hangup></Hangup>")
	if sayAt < 0 || hangAt < 0 || hangAt < sayAt {
		t.Fatalf("expected Say before Hangup, got %s", xml)
	}
	if !strings.HasPrefix(xml, "<?xml") {
		t.Fatalf("expected xml declaration, got %s", xml)
	}
}

func TestRender_SayAttributesAndEscaping(t *testing.T) {
	xml, err := NewResponse().Say(Say{Text: "Call for Sales & Support", Voice: "alice", Language: "en-GB"}).Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{`voice="alice"`, `language="en-GB"`, "Sales &amp; Support"} {
		if !strings.Contains(xml, want) {
			t.Fatalf("expected %q in %s", want, xml)
		}
	}
}

func TestRender_DialWithWhisperAndCallbacks(t *testing.T) {
	xml, err := NewResponse().Dial(Dial{
		TimeoutSeconds:               20,
		Record:                       RecordFromAnswerDual,
		RecordingStatusCallback:      "https://api.example.com/webhooks/twilio/recording",
		RecordingStatusCallbackEvent: []string{"completed"},
		Numbers: []DialNumber{{
			Number:              "+15559999999",
			WhisperURL:          "https://api.example.com/webhooks/twilio/whisper?called=%2B15550000001&caller=%2B15550000002",
			StatusCallback:      "https://api.example.com/webhooks/twilio/status",
			StatusCallbackEvent: []string{"initiated", "ringing", "answered", "completed"},
		}},
	}).Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		`timeout="20"`,
		`record="record-from-answer-dual"`,
		`recordingStatusCallback="https://api.example.com/webhooks/twilio/recording"`,
		`recordingStatusCallbackEvent="completed"`,
		`url="https://api.example.com/webhooks/twilio/whisper?called=%2B15550000001&amp;caller=%2B15550000002"`,
		`statusCallbackEvent="initiated ringing answered completed"`,
		`>+15559999999</Number>`,
	} {
		if !strings.Contains(xml, want) {
			t.Fatalf("expected %q in %s", want, xml)
		}
	}
}

func TestRender_DialOmitsEmptyWhisper(t *testing.T) {
	xml, err := NewResponse().Dial(Dial{TimeoutSeconds: 15, Numbers: []DialNumber{{Number: "+15559999999"}}}).Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(xml, "url=") {
		t.Fatalf("expected no url attribute, got %s", xml)
	}
}

func TestRender_EmptyResponse(t *testing.T) {
	xml, err := NewResponse().Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(xml, "<Response></Response>") {
		t.Fatalf("expected empty response, got %s", xml)
	}
}

func TestRender_DialRequiresTarget(t *testing.T) {
	if _, err := NewResponse().Dial(Dial{}).Render(); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := NewResponse().Dial(Dial{Numbers: []DialNumber{{Number: " "}}}).Render(); err == nil {
		t.Fatalf("expected error for blank number")
	}
}

func TestRender_PlayRequiresURL(t *testing.T) {
	if _, err := NewResponse().Play("").Render(); err == nil {
		t.Fatalf("expected error")
	}
	xml, err := NewResponse().Play("https://cdn.example.com/w.mp3").Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(xml, "<Play>https://cdn.example.com/w.mp3</Play>") {
		t.Fatalf("unexpected xml %s", xml)
	}
}
