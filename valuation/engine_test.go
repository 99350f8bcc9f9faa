package valuation

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vinted-monitor/fuzzy"
)

type fakeFetcher struct {
	mu           sync.Mutex
	sold         []ListingComp
	active       []ListingComp
	soldLimits   []int
	activeLimits []int
	queries      []string
	globalIDs    []string
}

func (f *fakeFetcher) PickGlobalID(currency string) string {
	return "G-" + currency
}

func (f *fakeFetcher) FetchSoldComps(_ context.Context, query string, limit int, globalID string) []ListingComp {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.soldLimits = append(f.soldLimits, limit)
	f.queries = append(f.queries, query)
	f.globalIDs = append(f.globalIDs, globalID)
	return f.sold
}

func (f *fakeFetcher) FetchActiveListings(_ context.Context, query string, limit int, globalID string) []ListingComp {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activeLimits = append(f.activeLimits, limit)
	return f.active
}

func TestEngine_RequestsExactlyFiveSoldComps(t *testing.T) {
	fetcher := &fakeFetcher{}
	engine := NewEngine(fetcher, Options{ActiveLimit: 0}, nil)

	engine.Evaluate(context.Background(), "Vintage Lamp", "", 25, "EUR", "", nil)

	assert.Equal(t, 5, MaxSoldCompResults)
	assert.Equal(t, []int{MaxSoldCompResults}, fetcher.soldLimits)
	assert.Empty(t, fetcher.activeLimits)
}

func TestEngine_DefaultOptions(t *testing.T) {
	opts := NewEngine(nil, DefaultOptions(), nil).Options()

	assert.Equal(t, MaxSoldCompResults, opts.SoldLimit)
	assert.Equal(t, 10, opts.ActiveLimit)
	assert.Equal(t, 0.35, opts.LowVarianceThreshold)
}

func TestEngine_ProfitScenario(t *testing.T) {
	fetcher := &fakeFetcher{
		sold:   eurComps(30, 40, 50),
		active: eurComps(45, 55),
	}
	engine := NewEngine(fetcher, DefaultOptions(), nil)
	match := &fuzzy.Match{Score: 95, Source: fuzzy.SourceTitle, Target: "limoges", SourceText: "Limoges plate"}

	res := engine.Evaluate(context.Background(), "Limoges plate", "", 25, "EUR", "limoges porcelain", match)

	assert.Equal(t, []string{"limoges"}, fetcher.queries)
	assert.Equal(t, []string{"G-EUR"}, fetcher.globalIDs)
	assert.Equal(t, []int{10}, fetcher.activeLimits)

	require.NotNil(t, res.Profit)
	assert.Equal(t, 15.0, *res.Profit)
	assert.Equal(t, "EUR", res.ProfitCurrency)
	require.NotNil(t, res.ProfitMultiple)
	assert.InDelta(t, 1.6, *res.ProfitMultiple, 1e-9)
	assert.Equal(t, "+€15 (1.6x)", FormatProfitEstimate(res))

	assert.Equal(t, ConfidenceLow, res.ConfidenceLabel)
	assert.Equal(t, 3, res.SoldSummary.SampleSize)
	require.NotNil(t, res.ActiveSummary)
	assert.Equal(t, 2, res.ActiveSummary.SampleSize)
	assert.Len(t, res.SoldComps, 3)
	assert.Len(t, res.ActiveListings, 2)
	assert.Equal(t, 25.0, res.ItemPrice)
	assert.Equal(t, "EUR", res.ItemCurrency)
}

func TestEngine_HighConfidenceScenario(t *testing.T) {
	fetcher := &fakeFetcher{sold: eurComps(98, 99, 100, 100, 101, 101, 99, 100)}
	engine := NewEngine(fetcher, Options{SoldLimit: 8}, nil)

	res := engine.Evaluate(context.Background(), "Luminarc glass", "Luminarc", 40, "EUR", "luminarc",
		&fuzzy.Match{Score: 95, Source: fuzzy.SourceTitle, Target: "luminarc"})

	assert.Equal(t, ConfidenceHigh, res.ConfidenceLabel)
	assert.Equal(t, IconHigh, res.ConfidenceIcon)
	assert.Equal(t, []int{8}, fetcher.soldLimits)
	assert.Nil(t, res.ActiveSummary)
}

func TestEngine_EmptyQuerySkipsFetch(t *testing.T) {
	fetcher := &fakeFetcher{sold: eurComps(10, 20, 30, 40)}
	engine := NewEngine(fetcher, DefaultOptions(), nil)

	res := engine.Evaluate(context.Background(), "", "", 25, "EUR", "", nil)

	assert.Empty(t, fetcher.soldLimits)
	assert.Empty(t, fetcher.activeLimits)
	assert.Equal(t, 0, res.SoldSummary.SampleSize)
	assert.Equal(t, SourceSold, res.SoldSummary.Source)
	assert.Nil(t, res.Profit)
	assert.Nil(t, res.ActiveSummary)
	assert.Equal(t, ConfidenceLow, res.ConfidenceLabel)
	assert.Equal(t, "n/a (no comps)", FormatProfitEstimate(res))
}

func TestEngine_NilFetcher(t *testing.T) {
	engine := NewEngine(nil, DefaultOptions(), nil)

	res := engine.Evaluate(context.Background(), "Vintage Lamp", "", 25, "EUR", "", nil)

	assert.Equal(t, "Vintage Lamp", res.Normalization.CanonicalQuery)
	assert.Equal(t, 0, res.SoldSummary.SampleSize)
	assert.Nil(t, res.Profit)
}

func TestEngine_CurrencyMismatch(t *testing.T) {
	fetcher := &fakeFetcher{sold: []ListingComp{comp(40, "USD"), comp(50, "USD"), comp(60, "USD"), comp(55, "USD")}}
	engine := NewEngine(fetcher, Options{}, nil)

	res := engine.Evaluate(context.Background(), "Lamp", "", 25, "EUR", "", nil)

	assert.Nil(t, res.Profit)
	assert.Equal(t, "USD", res.ProfitCurrency)
	assert.Equal(t, "n/a (currency mismatch)", FormatProfitEstimate(res))
	assert.Equal(t, ConfidenceMedium, res.ConfidenceLabel)
}

func TestEngine_ConcurrentEvaluations(t *testing.T) {
	fetcher := &fakeFetcher{sold: eurComps(30, 40, 50)}
	engine := NewEngine(fetcher, Options{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := engine.Evaluate(context.Background(), "Lamp", "", 25, "EUR", "", nil)
			assert.Equal(t, 15.0, *res.Profit)
		}()
	}
	wg.Wait()
	assert.Len(t, fetcher.soldLimits, 8)
}
