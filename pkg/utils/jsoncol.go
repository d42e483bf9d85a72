package utils

import (
	"encoding/json"
)

// DecodeJSON turns a JSON column value into T whatever shape the driver handed
// back: raw bytes, a string, an already-decoded map/slice, or T itself.
// NULL, empty and undecodable values yield def.
func DecodeJSON[T any](src any, def T) T {
	switch v := src.(type) {
	case nil:
		return def
	case T:
		return v
	case *T:
		if v == nil {
			return def
		}
		return *v
	case []byte:
		return unmarshalOr(v, def)
	case string:
		return unmarshalOr([]byte(v), def)
	default:
		// Pre-parsed structures (map[string]any, []any, ...): round-trip through JSON.
		b, err := json.Marshal(v)
		if err != nil {
			return def
		}
		return unmarshalOr(b, def)
	}
}

func unmarshalOr[T any](b []byte, def T) T {
	if len(b) == 0 || string(b) == "null" {
		return def
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return def
	}
	return out
}

// EncodeJSON marshals v for a JSON column, falling back to "{}".
func EncodeJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return []byte("{}")
	}
	return b
}
