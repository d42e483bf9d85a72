package whisper

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	cases := []struct {
		tmpl, label, caller, want string
	}{
		{"Call for {label} from {caller}", "Sales", "+15559999999", "Call for Sales from +15559999999"},
		{"{caller} {caller} for {label}", "Sales", "+1555", "+1555 +1555 for Sales"},
		{"Call for { Label } from {CALLER}", "Sales", "+1555", "Call for Sales from +1555"},
		{"Call from {caller}", "Sales", "", "Call from an unknown caller"},
		{"Call from {caller}", "Sales", "anonymous", "Call from an unknown caller"},
		{"No placeholders", "Sales", "+1555", "No placeholders"},
	}
	for _, tc := range cases {
		got := Render(tc.tmpl, tc.label, tc.caller)
		if got != tc.want {
			t.Fatalf("Render(%q) = %q, want %q", tc.tmpl, got, tc.want)
		}
		if strings.Contains(got, "{") {
			t.Fatalf("placeholder left in %q", got)
		}
	}
}
