package fuzzy

import (
	"sort"
)

// WordSubstitutions maps a letter pattern to the spellings people commonly
// type instead. Each rule is applied to one occurrence at a time.
var WordSubstitutions = map[string][]string{
	"ph": {"f"},
	"f":  {"ph"},
	"ck": {"k", "c"},
	"oo": {"u", "o"},
	"ou": {"u", "o"},
	"ie": {"ei"},
	"ei": {"ie"},
	"y":  {"i"},
	"i":  {"y"},
	"c":  {"k", "q", "s"},
	"k":  {"c", "q"},
	"q":  {"k", "c"},
	"v":  {"w", "b"},
	"w":  {"v"},
	"b":  {"v"},
	"m":  {"n"},
	"n":  {"m"},
	"ll": {"l"},
	"rr": {"r"},
	"ss": {"s"},
	"tt": {"t"},
	"pp": {"p"},
	"ch": {"sh"},
	"sh": {"ch"},
	"gh": {"g"},
	"g":  {"gh", "j"},
	"j":  {"g"},
}

// orderedPatterns returns the table's patterns longest first, alphabetical
// within one length, so generation order never depends on map iteration.
func orderedPatterns(table map[string][]string) []string {
	patterns := make([]string, 0, len(table))
	for p := range table {
		if p == "" {
			continue
		}
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool {
		if len(patterns[i]) != len(patterns[j]) {
			return len(patterns[i]) > len(patterns[j])
		}
		return patterns[i] < patterns[j]
	})
	return patterns
}
