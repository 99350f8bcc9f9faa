// Package valuation turns a matched listing into a market estimate: it builds
// a canonical pricing query, pulls sold and active comparables from eBay and
// summarizes them into a profit figure with a confidence label.
package valuation

// MatchQuality buckets a fuzzy score.
type MatchQuality string

const (
	QualityCanonical   MatchQuality = "canonical"
	QualityLikely      MatchQuality = "likely"
	QualityApproximate MatchQuality = "approximate"
	QualityUnknown     MatchQuality = "unknown"
)

// Confidence labels and their icons.
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"

	IconHigh   = "🟢"
	IconMedium = "🟡"
	IconLow    = "🟠"
)

// Source labels attached to comps and summaries.
const (
	SourceSold   = "eBay sold"
	SourceActive = "eBay active"
)

// ListingComp is one comparable listing from the pricing API.
// Price and Currency are nil when the payload did not carry them.
type ListingComp struct {
	Title    string   `json:"title"`
	Price    *float64 `json:"price,omitempty"`
	Currency *string  `json:"currency,omitempty"`
	URL      string   `json:"url,omitempty"`
	Image    string   `json:"image,omitempty"`
	Source   string   `json:"source"`
}

// MarketSummary aggregates the prices of a single-currency group of comps.
// With SampleSize 0 every pointer field is nil.
type MarketSummary struct {
	Minimum    *float64  `json:"minimum,omitempty"`
	Maximum    *float64  `json:"maximum,omitempty"`
	Median     *float64  `json:"median,omitempty"`
	Currency   string    `json:"currency,omitempty"`
	SampleSize int       `json:"sample_size"`
	Source     string    `json:"source"`
	Prices     []float64 `json:"prices,omitempty"`
}

// NormalizationResult is a listing cleaned up for valuation.
type NormalizationResult struct {
	Title          string       `json:"title"`
	Brand          string       `json:"brand,omitempty"`
	CanonicalQuery string       `json:"canonical_query"`
	FuzzyTerm      string       `json:"fuzzy_term,omitempty"`
	FuzzyScore     *float64     `json:"fuzzy_score,omitempty"`
	MatchQuality   MatchQuality `json:"match_quality"`
}

// ValuationResult is the outcome of one Engine.Evaluate call.
type ValuationResult struct {
	Normalization   NormalizationResult `json:"normalization"`
	SoldSummary     MarketSummary       `json:"sold_summary"`
	ActiveSummary   *MarketSummary      `json:"active_summary,omitempty"`
	Profit          *float64            `json:"profit,omitempty"`
	ProfitCurrency  string              `json:"profit_currency,omitempty"`
	ProfitMultiple  *float64            `json:"profit_multiple,omitempty"`
	ConfidenceLabel string              `json:"confidence_label"`
	ConfidenceIcon  string              `json:"confidence_icon"`
	ItemPrice       float64             `json:"item_price"`
	ItemCurrency    string              `json:"item_currency"`
	SoldComps       []ListingComp       `json:"sold_comps"`
	ActiveListings  []ListingComp       `json:"active_listings"`
}

func floatPtr(v float64) *float64 { return &v }

func stringPtr(v string) *string { return &v }
