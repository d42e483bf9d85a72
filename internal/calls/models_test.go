package calls

import "testing"

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"initiated":   StatusQueued,
		"queued":      StatusQueued,
		"Ringing":     StatusRinging,
		"in-progress": StatusInProgress,
		"answered":    StatusInProgress,
		"completed":   StatusCompleted,
		"no-answer":   StatusNoAnswer,
		"busy":        StatusBusy,
		"canceled":    StatusCanceled,
	}
	for in, want := range cases {
		got, ok := ParseStatus(in)
		if !ok || got != want {
			t.Fatalf("ParseStatus(%q)=%q,%v want %q", in, got, ok, want)
		}
	}
	if _, ok := ParseStatus("exploded"); ok {
		t.Fatalf("expected unknown status rejected")
	}
}

func TestAdvance_NeverRegresses(t *testing.T) {
	if got := Advance(StatusInProgress, StatusRinging); got != StatusInProgress {
		t.Fatalf("expected in-progress kept, got %q", got)
	}
	if got := Advance(StatusRinging, StatusInProgress); got != StatusInProgress {
		t.Fatalf("expected in-progress, got %q", got)
	}
	if got := Advance(StatusCompleted, StatusRinging); got != StatusCompleted {
		t.Fatalf("terminal replaced by %q", got)
	}
	if got := Advance(StatusNoAnswer, StatusCompleted); got != StatusNoAnswer {
		t.Fatalf("terminal replaced by %q", got)
	}
	if got := Advance("", StatusQueued); got != StatusQueued {
		t.Fatalf("expected queued, got %q", got)
	}
}

func TestParseDirection(t *testing.T) {
	if ParseDirection("outbound-dial") != DirectionOutbound || ParseDirection("outbound-api") != DirectionOutbound {
		t.Fatalf("expected outbound")
	}
	if ParseDirection("inbound") != DirectionInbound || ParseDirection("") != DirectionInbound {
		t.Fatalf("expected inbound")
	}
}
