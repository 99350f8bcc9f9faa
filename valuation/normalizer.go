package valuation

import (
	"math"
	"strings"

	"vinted-monitor/fuzzy"
)

// Fuzzy score boundaries for the match quality tiers.
const (
	CanonicalFuzzyScore = 90
	LikelyFuzzyScore    = 82

	// likelyUpperScore is the last whole score still graded likely.
	likelyUpperScore = 89
)

// ListingNormalizer prepares a listing for a pricing lookup.
type ListingNormalizer struct{}

// NewListingNormalizer returns a ListingNormalizer.
func NewListingNormalizer() *ListingNormalizer {
	return &ListingNormalizer{}
}

// Normalize cleans title and brand for display and builds the canonical
// pricing query: brand first, then the matched term (or the base search text,
// or the title), case-insensitive duplicates dropped.
func (n *ListingNormalizer) Normalize(title, brand, baseSearchText string, match *fuzzy.Match) NormalizationResult {
	cleanedTitle := cleanOrTrim(title)
	cleanedBrand := cleanOrTrim(brand)

	var fuzzyTerm string
	var fuzzyScore *float64
	if match != nil {
		fuzzyTerm = strings.TrimSpace(match.Target)
		if !math.IsNaN(match.Score) && !math.IsInf(match.Score, 0) {
			fuzzyScore = floatPtr(match.Score)
		}
	}
	if fuzzyTerm == "" {
		fuzzyTerm = strings.TrimSpace(baseSearchText)
	}

	var parts []string
	if cleanedBrand != "" {
		parts = append(parts, cleanedBrand)
	}
	if fuzzyTerm != "" {
		parts = append(parts, fuzzyTerm)
	} else if cleanedTitle != "" {
		parts = append(parts, cleanedTitle)
	}

	return NormalizationResult{
		Title:          cleanedTitle,
		Brand:          cleanedBrand,
		CanonicalQuery: joinUnique(parts),
		FuzzyTerm:      fuzzyTerm,
		FuzzyScore:     fuzzyScore,
		MatchQuality:   qualityFor(fuzzyScore, fuzzyTerm),
	}
}

func qualityFor(score *float64, term string) MatchQuality {
	switch {
	case score != nil && *score >= CanonicalFuzzyScore:
		return QualityCanonical
	case score != nil && *score >= LikelyFuzzyScore && *score <= likelyUpperScore:
		return QualityLikely
	case score != nil:
		return QualityApproximate
	case term != "":
		return QualityApproximate
	default:
		return QualityUnknown
	}
}

// cleanOrTrim applies the display cleanup, keeping the trimmed input when the
// cleanup leaves nothing (e.g. text made only of separators).
func cleanOrTrim(s string) string {
	if cleaned := fuzzy.Clean(s); cleaned != "" {
		return cleaned
	}
	return strings.TrimSpace(s)
}

func joinUnique(parts []string) string {
	seen := make(map[string]struct{}, len(parts))
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		key := strings.ToLower(p)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, p)
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}
