package valuation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CurrencySymbols lists the currencies rendered with a symbol prefix.
var CurrencySymbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
	"CAD": "C$",
	"AUD": "A$",
	"CHF": "CHF",
	"PLN": "zł",
	"JPY": "¥",
}

// FormatMoney renders an amount with at most two decimals, e.g. "€12.5" or
// "12 SEK". A nil amount renders as "n/a".
func FormatMoney(amount *float64, currency string) string {
	if amount == nil {
		return "n/a"
	}

	value := strconv.FormatFloat(*amount, 'f', 2, 64)
	value = strings.TrimRight(strings.TrimRight(value, "0"), ".")
	if value == "" || value == "-0" {
		value = "0"
	}

	if symbol, ok := CurrencySymbols[currency]; ok {
		return symbol + value
	}
	if currency != "" {
		return value + " " + currency
	}
	return value
}

// FormatPriceRange renders "min–max", or a single price when both match.
func FormatPriceRange(s MarketSummary) string {
	if s.SampleSize == 0 || s.Minimum == nil || s.Maximum == nil {
		return "n/a"
	}

	lower := FormatMoney(s.Minimum, s.Currency)
	upper := FormatMoney(s.Maximum, s.Currency)
	if lower == upper {
		return lower
	}
	return lower + "–" + upper
}

// FormatMarketSummary renders e.g. "€40–€60 (median €50, eBay sold, n=3)".
func FormatMarketSummary(s MarketSummary) string {
	if s.SampleSize == 0 {
		return "not enough data"
	}

	source := s.Source
	if source == "" {
		source = "market"
	}
	return fmt.Sprintf("%s (median %s, %s, n=%d)",
		FormatPriceRange(s), FormatMoney(s.Median, s.Currency), source, s.SampleSize)
}

// FormatActiveSummary renders the active listings line, or "" without data.
func FormatActiveSummary(s *MarketSummary) string {
	if s == nil || s.SampleSize == 0 {
		return ""
	}
	return "\n🛒 Active listings: " + FormatMarketSummary(*s)
}

// FormatProfitEstimate renders e.g. "+€15 (1.6x)" or explains why no
// estimate exists.
func FormatProfitEstimate(r ValuationResult) string {
	if r.Profit == nil {
		switch {
		case r.SoldSummary.SampleSize == 0:
			return "n/a (no comps)"
		case r.SoldSummary.Currency != "" && r.SoldSummary.Currency != r.ItemCurrency:
			return "n/a (currency mismatch)"
		default:
			return "n/a"
		}
	}

	currency := r.ProfitCurrency
	if currency == "" {
		currency = r.ItemCurrency
	}
	profit := *r.Profit
	formatted := FormatMoney(floatPtr(math.Abs(profit)), currency)
	switch {
	case profit > 0:
		formatted = "+" + formatted
	case profit < 0:
		formatted = "-" + formatted
	}

	if r.ProfitMultiple != nil && *r.ProfitMultiple > 0 {
		formatted += fmt.Sprintf(" (%.1fx)", *r.ProfitMultiple)
	}
	return formatted
}

// FormatConfidenceLine renders the confidence line with a leading newline.
func FormatConfidenceLine(r ValuationResult) string {
	return fmt.Sprintf("\n%s Confidence: %s", r.ConfidenceIcon, r.ConfidenceLabel)
}

// FormatFuzzyLine describes the match used for the pricing query.
func FormatFuzzyLine(n NormalizationResult) string {
	if n.FuzzyTerm == "" && n.FuzzyScore == nil {
		return "No fuzzy match"
	}

	quoted := "match"
	if n.FuzzyTerm != "" {
		quoted = "“" + n.FuzzyTerm + "”"
	}
	if n.FuzzyScore == nil {
		return quoted
	}

	score := fmt.Sprintf("score %d", int(math.Round(*n.FuzzyScore)))
	switch n.MatchQuality {
	case QualityCanonical:
		return fmt.Sprintf("%s (%s, canonical)", quoted, score)
	case QualityLikely:
		return fmt.Sprintf("%s (%s, likely)", quoted, score)
	case QualityApproximate:
		return fmt.Sprintf("%s (%s, loose)", quoted, score)
	default:
		return fmt.Sprintf("%s (%s)", quoted, score)
	}
}

// BuildReferenceLine points at the first sold comp with an image, else the
// first with a URL.
func BuildReferenceLine(r ValuationResult) string {
	for _, c := range r.SoldComps {
		if c.Image != "" {
			return "\n🖼️ Reference: " + c.Image
		}
	}
	for _, c := range r.SoldComps {
		if c.URL != "" {
			return "\n🖼️ Reference: " + c.URL
		}
	}
	return ""
}
