package valuation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"vinted-monitor/utils"
)

const (
	// DefaultEbayEndpoint is the Finding API base URL.
	DefaultEbayEndpoint = "https://svcs.ebay.com/services/search/FindingService/v1"

	// DefaultGlobalID is the marketplace used for currencies missing from
	// CurrencyToGlobalID.
	DefaultGlobalID = "EBAY-DE"

	findingServiceVersion = "1.13.0"
	maxEntriesPerPage     = 100
	endedWithSales        = "EndedWithSales"
)

// CurrencyToGlobalID maps a listing currency to the eBay marketplace that
// trades in it.
var CurrencyToGlobalID = map[string]string{
	"EUR": "EBAY-DE",
	"USD": "EBAY-US",
	"GBP": "EBAY-GB",
	"CAD": "EBAY-ENCA",
	"AUD": "EBAY-AU",
	"CHF": "EBAY-CH",
}

// MarketDataFetcher retrieves comparable listings. Implementations never
// fail: problems are logged and yield an empty slice.
type MarketDataFetcher interface {
	PickGlobalID(currency string) string
	FetchSoldComps(ctx context.Context, query string, limit int, globalID string) []ListingComp
	FetchActiveListings(ctx context.Context, query string, limit int, globalID string) []ListingComp
}

// EbayConfig configures an EbayFetcher. Zero values fall back to defaults.
type EbayConfig struct {
	AppID             string
	DefaultGlobalID   string
	Endpoint          string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// EbayFetcher queries the eBay Finding API for sold and active comps.
// It is safe for concurrent use.
type EbayFetcher struct {
	appID           string
	defaultGlobalID string
	endpoint        string
	httpClient      *http.Client
	limiter         *rate.Limiter
	logger          *utils.Logger
}

// NewEbayFetcher creates a fetcher. Without an AppID every fetch is a no-op.
func NewEbayFetcher(cfg EbayConfig, logger *utils.Logger) *EbayFetcher {
	if cfg.DefaultGlobalID == "" {
		cfg.DefaultGlobalID = DefaultGlobalID
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEbayEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 12 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	return &EbayFetcher{
		appID:           strings.TrimSpace(cfg.AppID),
		defaultGlobalID: cfg.DefaultGlobalID,
		endpoint:        cfg.Endpoint,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		limiter:         rate.NewLimiter(limit, 1),
		logger:          logger,
	}
}

// PickGlobalID returns the marketplace for currency, or the default one.
func (f *EbayFetcher) PickGlobalID(currency string) string {
	if id, ok := CurrencyToGlobalID[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return id
	}
	return f.defaultGlobalID
}

// FetchSoldComps returns listings that ended with a sale.
func (f *EbayFetcher) FetchSoldComps(ctx context.Context, query string, limit int, globalID string) []ListingComp {
	if f.appID == "" || strings.TrimSpace(query) == "" {
		f.logger.Debug("[ebay] Skipping sold comps fetch: missing credentials or query")
		return nil
	}

	params := f.baseParams("findCompletedItems", query, limit, globalID)
	params.Set("itemFilter(0).name", "SoldItemsOnly")
	params.Set("itemFilter(0).value", "true")
	params.Set("sortOrder", "EndTimeSoonest")

	data := f.perform(ctx, params)
	var comps []ListingComp
	for _, item := range extractItems(data, "findCompletedItemsResponse") {
		status := firstOf(field(item, "sellingStatus"))
		if state := firstString(status, "sellingState"); state != "" && state != endedWithSales {
			continue
		}
		comps = append(comps, compFromItem(item, status, SourceSold))
	}
	return comps
}

// FetchActiveListings returns listings currently for sale, cheapest first.
func (f *EbayFetcher) FetchActiveListings(ctx context.Context, query string, limit int, globalID string) []ListingComp {
	if f.appID == "" || strings.TrimSpace(query) == "" {
		f.logger.Debug("[ebay] Skipping active listings fetch: missing credentials or query")
		return nil
	}

	params := f.baseParams("findItemsAdvanced", query, limit, globalID)
	params.Set("sortOrder", "PricePlusShippingLowest")

	data := f.perform(ctx, params)
	var listings []ListingComp
	for _, item := range extractItems(data, "findItemsAdvancedResponse") {
		status := firstOf(field(item, "sellingStatus"))
		listings = append(listings, compFromItem(item, status, SourceActive))
	}
	return listings
}

func (f *EbayFetcher) baseParams(operation, query string, limit int, globalID string) url.Values {
	params := url.Values{}
	params.Set("OPERATION-NAME", operation)
	params.Set("SERVICE-VERSION", findingServiceVersion)
	params.Set("SECURITY-APPNAME", f.appID)
	params.Set("RESPONSE-DATA-FORMAT", "JSON")
	params.Set("REST-PAYLOAD", "true")
	params.Set("keywords", query)
	params.Set("paginationInput.entriesPerPage", strconv.Itoa(clampPageSize(limit)))
	if globalID != "" {
		params.Set("GLOBAL-ID", globalID)
	}
	return params
}

// perform runs one request and returns the decoded body, or nil on any failure.
func (f *EbayFetcher) perform(ctx context.Context, params url.Values) any {
	data, err := f.get(ctx, params)
	if err != nil {
		f.logger.Warn("[ebay] %s failed: %v", params.Get("OPERATION-NAME"), err)
		return nil
	}
	return data
}

func (f *EbayFetcher) get(ctx context.Context, params url.Values) (any, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var data any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return data, nil
}

func clampPageSize(limit int) int {
	return max(1, min(limit, maxEntriesPerPage))
}

func compFromItem(item, status any, source string) ListingComp {
	priceInfo := field(status, "convertedCurrentPrice")
	if isEmpty(priceInfo) {
		priceInfo = field(status, "currentPrice")
	}
	price, currency := extractPrice(priceInfo)

	return ListingComp{
		Title:    firstString(item, "title"),
		Price:    price,
		Currency: currency,
		URL:      firstString(item, "viewItemURL"),
		Image:    firstString(item, "galleryURL"),
		Source:   source,
	}
}

// The Finding API wraps nearly every value in a one-element array. The
// accessors below walk that tree and return zero values on any mismatch.

func field(v any, key string) any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m[key]
}

// firstOf unwraps a one-element array. Non-array values are returned as is.
func firstOf(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

func firstString(v any, key string) string {
	s, _ := firstOf(field(v, key)).(string)
	return s
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case string:
		return t == ""
	}
	return false
}

func extractItems(data any, rootKey string) []any {
	response := firstOf(field(data, rootKey))
	result := firstOf(field(response, "searchResult"))
	items, _ := field(result, "item").([]any)
	return items
}

// extractPrice reads {"__value__": "12.5", "@currencyId": "EUR"}. The
// currency is still reported when the amount is missing or malformed.
func extractPrice(info any) (*float64, *string) {
	entry, ok := firstOf(info).(map[string]any)
	if !ok {
		return nil, nil
	}

	var currency *string
	if c, ok := entry["@currencyId"].(string); ok && c != "" {
		currency = stringPtr(c)
	}

	switch v := entry["__value__"].(type) {
	case string:
		amount, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, currency
		}
		return floatPtr(amount), currency
	case float64:
		return floatPtr(v), currency
	default:
		return nil, currency
	}
}
