package utils

import "testing"

type caps struct {
	Voice bool `json:"voice"`
	SMS   bool `json:"sms"`
}

func TestDecodeJSON_AcceptsEveryShape(t *testing.T) {
	def := caps{Voice: true}

	cases := []struct {
		name string
		src  any
		want caps
	}{
		{"nil", nil, def},
		{"bytes", []byte(`{"voice":false,"sms":true}`), caps{SMS: true}},
		{"string", `{"voice":true,"sms":true}`, caps{Voice: true, SMS: true}},
		{"empty string", "", def},
		{"json null", []byte("null"), def},
		{"garbage", "{not json", def},
		{"pre-parsed map", map[string]any{"sms": true}, caps{SMS: true}},
		{"typed", caps{SMS: true}, caps{SMS: true}},
	}
	for _, tc := range cases {
		if got := DecodeJSON(tc.src, def); got != tc.want {
			t.Fatalf("%s: expected %+v, got %+v", tc.name, tc.want, got)
		}
	}
}

func TestEncodeJSON(t *testing.T) {
	if got := string(EncodeJSON(caps{Voice: true})); got != `{"voice":true,"sms":false}` {
		t.Fatalf("unexpected encoding %s", got)
	}
	if got := string(EncodeJSON(nil)); got != "{}" {
		t.Fatalf("expected {} for nil, got %s", got)
	}
}
