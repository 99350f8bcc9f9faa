package fuzzy

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultThreshold is the minimum token-set score for a listing to count as
// a match for a saved search.
const DefaultThreshold = 72

// minTargetTokenLen is the shortest single word promoted to its own target.
const minTargetTokenLen = 4

// Source tells which listing field produced a match.
type Source string

const (
	SourceTitle Source = "title"
	SourceBrand Source = "brand"
)

// Match is the best fuzzy hit of a listing against a base phrase.
type Match struct {
	Score      float64 `json:"score"`
	Source     Source  `json:"source"`
	Target     string  `json:"target"`
	SourceText string  `json:"source_text"`
}

// Matcher scores listing titles and brands against a base phrase.
type Matcher struct {
	Threshold float64
}

// NewMatcher returns a Matcher that accepts scores at or above threshold.
func NewMatcher(threshold float64) *Matcher {
	return &Matcher{Threshold: threshold}
}

type target struct {
	key     string
	display string
}

// buildTargets returns the normalized phrase plus every distinct word of at
// least minTargetTokenLen characters, in phrase order.
func buildTargets(base string) []target {
	normalized := Normalize(base)
	if normalized == "" {
		return nil
	}

	targets := []target{{key: normalized, display: strings.TrimSpace(base)}}
	seen := map[string]struct{}{normalized: {}}
	for _, token := range strings.Fields(normalized) {
		if utf8.RuneCountInString(token) < minTargetTokenLen {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		targets = append(targets, target{key: token, display: token})
	}
	return targets
}

// Match returns the better of the title and brand hits that clears the
// threshold, or nil. The title wins ties.
func (m *Matcher) Match(base, title, brand string) *Match {
	targets := buildTargets(base)
	if len(targets) == 0 {
		return nil
	}

	var best *Match
	candidates := []struct {
		source Source
		text   string
	}{
		{SourceTitle, title},
		{SourceBrand, brand},
	}

	for _, c := range candidates {
		normalized := Normalize(c.text)
		if normalized == "" {
			continue
		}

		bestScore := -1.0
		var bestTarget target
		for _, t := range targets {
			if score := TokenSetRatio(normalized, t.key); score > bestScore {
				bestScore = score
				bestTarget = t
			}
		}
		if bestScore < m.Threshold {
			continue
		}
		if best == nil || bestScore > best.Score {
			best = &Match{
				Score:      bestScore,
				Source:     c.source,
				Target:     bestTarget.display,
				SourceText: strings.TrimSpace(c.text),
			}
		}
	}
	return best
}

// BestMatch is a convenience wrapper around Matcher.Match.
func BestMatch(base, title, brand string, threshold float64) *Match {
	return NewMatcher(threshold).Match(base, title, brand)
}

// TokenSetRatio scores two strings from 0 to 100 by comparing their word sets,
// ignoring order and repeated words. A shared word set where one side adds
// nothing scores 100.
func TokenSetRatio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	var intersect, diffAB, diffBA []string
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersect = append(intersect, tok)
		} else {
			diffAB = append(diffAB, tok)
		}
	}
	for tok := range setB {
		if _, ok := setA[tok]; !ok {
			diffBA = append(diffBA, tok)
		}
	}

	if len(intersect) > 0 && (len(diffAB) == 0 || len(diffBA) == 0) {
		return 100
	}

	sort.Strings(intersect)
	sort.Strings(diffAB)
	sort.Strings(diffBA)

	abJoined := strings.Join(diffAB, " ")
	baJoined := strings.Join(diffBA, " ")
	abLen := utf8.RuneCountInString(abJoined)
	baLen := utf8.RuneCountInString(baJoined)
	sectLen := utf8.RuneCountInString(strings.Join(intersect, " "))

	sep := 0
	if sectLen > 0 {
		sep = 1
	}
	sectABLen := sectLen + sep + abLen
	sectBALen := sectLen + sep + baLen

	result := normalizedSimilarity(indelDistance(abJoined, baJoined), sectABLen+sectBALen)
	if sectLen == 0 {
		return result
	}

	// The intersection is common to both sides, so only the separator and
	// the diff contribute to the distance.
	abRatio := normalizedSimilarity(sep+abLen, sectLen+sectABLen)
	baRatio := normalizedSimilarity(sep+baLen, sectLen+sectBALen)
	return max(result, abRatio, baRatio)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func normalizedSimilarity(distance, lensum int) float64 {
	if lensum == 0 {
		return 100
	}
	return 100 - 100*float64(distance)/float64(lensum)
}

// indelDistance counts the insertions and deletions turning a into b,
// i.e. len(a)+len(b)-2*LCS(a,b).
func indelDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return len(ra) + len(rb)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return len(ra) + len(rb) - 2*prev[len(rb)]
}
