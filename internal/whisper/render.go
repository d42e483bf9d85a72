package whisper

import (
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`(?i)\{\s*(label|caller)\s*\}`)

const unknownCaller = "an unknown caller"

// Render substitutes every {label} and {caller} occurrence. Matching is
// case-insensitive and tolerates inner spaces, so no placeholder survives.
func Render(template, label, caller string) string {
	if strings.TrimSpace(caller) == "" || strings.EqualFold(caller, "anonymous") {
		caller = unknownCaller
	}
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		if strings.Contains(strings.ToLower(m), "label") {
			return label
		}
		return caller
	})
}
