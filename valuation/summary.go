package valuation

import (
	"math"
	"sort"
)

// Summarize aggregates comps over their largest currency group. Comps
// without a price or currency are ignored; on a tie the currency seen first
// wins. No usable comps yields a zero-sample summary.
func Summarize(comps []ListingComp, source string) MarketSummary {
	groups := make(map[string][]float64)
	var order []string
	for _, c := range comps {
		if c.Price == nil || c.Currency == nil || *c.Currency == "" {
			continue
		}
		cur := *c.Currency
		if _, ok := groups[cur]; !ok {
			order = append(order, cur)
		}
		groups[cur] = append(groups[cur], *c.Price)
	}
	if len(order) == 0 {
		return MarketSummary{Source: source}
	}

	currency := order[0]
	for _, cur := range order[1:] {
		if len(groups[cur]) > len(groups[currency]) {
			currency = cur
		}
	}

	prices := append([]float64(nil), groups[currency]...)
	sort.Float64s(prices)

	return MarketSummary{
		Minimum:    floatPtr(prices[0]),
		Maximum:    floatPtr(prices[len(prices)-1]),
		Median:     floatPtr(median(prices)),
		Currency:   currency,
		SampleSize: len(prices),
		Source:     source,
		Prices:     prices,
	}
}

// EstimateProfit compares the sold median with the item price. Profit is nil
// without comps or when the comps trade in another currency; in the latter
// case the comp currency is still returned.
func EstimateProfit(summary MarketSummary, itemPrice float64, itemCurrency string) (profit *float64, currency string, multiple *float64) {
	if summary.SampleSize == 0 || summary.Median == nil {
		return nil, "", nil
	}
	if summary.Currency != "" && summary.Currency != itemCurrency {
		return nil, summary.Currency, nil
	}

	currency = summary.Currency
	if currency == "" {
		currency = itemCurrency
	}
	med := *summary.Median
	if itemPrice > 0 {
		multiple = floatPtr(med / itemPrice)
	}
	return floatPtr(med - itemPrice), currency, multiple
}

// ScoreConfidence grades a valuation from the fuzzy score and the sold
// comps. The first matching rule wins:
//
//	fewer than 4 comps                         Low
//	score >= 90, 8+ comps, low price variance  High
//	82 <= score < 90, or 4 to 7 comps          Medium
//	8+ comps                                   Medium
//	otherwise                                  Low
//
// A nil score counts as 0.
func ScoreConfidence(fuzzyScore *float64, summary MarketSummary, varianceThreshold float64) (label, icon string) {
	comps := summary.SampleSize
	if comps < 4 {
		return ConfidenceLow, IconLow
	}

	score := 0.0
	if fuzzyScore != nil {
		score = *fuzzyScore
	}

	if score >= CanonicalFuzzyScore && comps >= 8 && HasLowVariance(summary.Prices, varianceThreshold) {
		return ConfidenceHigh, IconHigh
	}
	if (score >= LikelyFuzzyScore && score < CanonicalFuzzyScore) || comps <= 7 {
		return ConfidenceMedium, IconMedium
	}
	if comps >= 8 {
		return ConfidenceMedium, IconMedium
	}
	return ConfidenceLow, IconLow
}

// HasLowVariance reports whether the coefficient of variation (population
// standard deviation over median) is at most threshold. Fewer than two
// prices count as stable; a non-positive median does not.
func HasLowVariance(prices []float64, threshold float64) bool {
	if len(prices) < 2 {
		return true
	}

	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)
	med := median(sorted)
	if med <= 0 {
		return false
	}

	deviation := populationStdDev(prices)
	if deviation == 0 {
		return true
	}
	return deviation/med <= threshold
}

// median expects sorted, non-empty input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func populationStdDev(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}
