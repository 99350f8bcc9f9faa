package fuzzy

import (
	"fmt"
	"math"
	"strings"
)

// QueryNameDelimiter separates the display name from the base search text
// in a stored query name.
const QueryNameDelimiter = "||"

// EncodeQueryName packs a display name and base search text into one stored
// value. ok is false when both are blank.
func EncodeQueryName(display, base string) (encoded string, ok bool) {
	display = strings.ReplaceAll(strings.TrimSpace(display), QueryNameDelimiter, " ")
	base = strings.ReplaceAll(strings.TrimSpace(base), QueryNameDelimiter, " ")

	if base != "" {
		combined := display
		if combined == "" {
			combined = base
		}
		return strings.Trim(combined+QueryNameDelimiter+base, "|"), true
	}
	if display != "" {
		return display, true
	}
	return "", false
}

// DecodeQueryName splits a stored query name. Values written before the base
// text was tracked decode to a display name only.
func DecodeQueryName(raw string) (display, base string) {
	if raw == "" {
		return "", ""
	}
	if d, b, found := strings.Cut(raw, QueryNameDelimiter); found {
		return strings.TrimSpace(d), strings.TrimSpace(b)
	}
	return strings.TrimSpace(raw), ""
}

// FormatMatch renders a match as e.g. "Title 95% ↔ limoges".
func FormatMatch(m *Match) string {
	if m == nil {
		return "No fuzzy match"
	}

	label := "Brand"
	if m.Source == SourceTitle {
		label = "Title"
	}
	score := int(math.Round(m.Score))
	if target := strings.TrimSpace(m.Target); target != "" {
		return fmt.Sprintf("%s %d%% ↔ %s", label, score, target)
	}
	return fmt.Sprintf("%s %d%%", label, score)
}
