package valuation

import (
	"context"

	"vinted-monitor/fuzzy"
	"vinted-monitor/utils"
)

// MaxSoldCompResults is the default number of sold comps requested per
// valuation.
const MaxSoldCompResults = 5

const (
	defaultActiveLimit          = 10
	defaultLowVarianceThreshold = 0.35
)

// Options tunes an Engine.
type Options struct {
	// SoldLimit is the sold comp count requested; < 1 means MaxSoldCompResults.
	SoldLimit int
	// ActiveLimit is the active listing count requested; 0 disables the lookup.
	ActiveLimit int
	// LowVarianceThreshold is the largest coefficient of variation that still
	// counts as stable; <= 0 means 0.35.
	LowVarianceThreshold float64
}

// DefaultOptions returns the stock engine settings.
func DefaultOptions() Options {
	return Options{
		SoldLimit:            MaxSoldCompResults,
		ActiveLimit:          defaultActiveLimit,
		LowVarianceThreshold: defaultLowVarianceThreshold,
	}
}

// Engine values listings against market comps. It keeps no per-call state,
// so one instance can serve concurrent evaluations.
type Engine struct {
	fetcher    MarketDataFetcher
	normalizer *ListingNormalizer
	opts       Options
	logger     *utils.Logger
}

// NewEngine creates an Engine. A nil fetcher disables comp lookups.
func NewEngine(fetcher MarketDataFetcher, opts Options, logger *utils.Logger) *Engine {
	if opts.SoldLimit < 1 {
		opts.SoldLimit = MaxSoldCompResults
	}
	if opts.ActiveLimit < 0 {
		opts.ActiveLimit = 0
	}
	if opts.LowVarianceThreshold <= 0 {
		opts.LowVarianceThreshold = defaultLowVarianceThreshold
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Engine{
		fetcher:    fetcher,
		normalizer: NewListingNormalizer(),
		opts:       opts,
		logger:     logger,
	}
}

// Options returns the effective settings.
func (e *Engine) Options() Options { return e.opts }

// Evaluate normalizes the listing, fetches comps for its canonical query and
// derives profit and confidence. It never fails; missing data shows up as a
// zero-sample summary and a nil profit.
func (e *Engine) Evaluate(ctx context.Context, title, brand string, price float64, currency, baseSearchText string, match *fuzzy.Match) ValuationResult {
	norm := e.normalizer.Normalize(title, brand, baseSearchText, match)

	soldSummary := MarketSummary{Source: SourceSold}
	var activeSummary *MarketSummary
	var soldComps, activeListings []ListingComp

	if e.fetcher != nil && norm.CanonicalQuery != "" {
		globalID := e.fetcher.PickGlobalID(currency)
		soldComps = e.fetcher.FetchSoldComps(ctx, norm.CanonicalQuery, e.opts.SoldLimit, globalID)
		soldSummary = Summarize(soldComps, SourceSold)

		if e.opts.ActiveLimit > 0 {
			activeListings = e.fetcher.FetchActiveListings(ctx, norm.CanonicalQuery, e.opts.ActiveLimit, globalID)
			s := Summarize(activeListings, SourceActive)
			activeSummary = &s
		}
	} else {
		e.logger.Debug("[valuation] Skipped comp fetch (query=%q, fetcher=%t)", norm.CanonicalQuery, e.fetcher != nil)
	}

	profit, profitCurrency, multiple := EstimateProfit(soldSummary, price, currency)
	label, icon := ScoreConfidence(norm.FuzzyScore, soldSummary, e.opts.LowVarianceThreshold)

	return ValuationResult{
		Normalization:   norm,
		SoldSummary:     soldSummary,
		ActiveSummary:   activeSummary,
		Profit:          profit,
		ProfitCurrency:  profitCurrency,
		ProfitMultiple:  multiple,
		ConfidenceLabel: label,
		ConfidenceIcon:  icon,
		ItemPrice:       price,
		ItemCurrency:    currency,
		SoldComps:       soldComps,
		ActiveListings:  activeListings,
	}
}
