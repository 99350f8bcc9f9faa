package vinted

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vinted-monitor/models"
	"vinted-monitor/utils"
)

// UnknownCountry is reported when a seller's country cannot be resolved.
const UnknownCountry = "XX"

const (
	catalogPath = "/api/v2/catalog/items"
	maxPerPage  = 96
)

// ErrSessionExpired is returned when the API rejects the session cookies.
var ErrSessionExpired = errors.New("vinted: session expired")

// catalogParams maps the browser catalog URL filters to API parameter names.
// Multi-valued filters are joined with commas.
var catalogParams = []struct{ from, to string }{
	{"catalog[]", "catalog_ids"},
	{"color_ids[]", "color_ids"},
	{"brand_ids[]", "brand_ids"},
	{"size_ids[]", "size_ids"},
	{"material_ids[]", "material_ids"},
	{"status_ids[]", "status_ids"},
	{"country_ids[]", "country_ids"},
	{"city_ids[]", "city_ids"},
	{"currency", "currency"},
	{"price_to", "price_to"},
	{"price_from", "price_from"},
	{"order", "order"},
}

// Config controls the marketplace client.
type Config struct {
	BaseURL        string
	ChromeBin      string
	MaxRetries     int
	RequestTimeout time.Duration
}

// Client searches the marketplace catalog through a headless browser session.
type Client struct {
	baseURL string
	fetcher pageFetcher
	session *browserSession
	retry   *utils.RetryConfig
	logger  *utils.Logger
}

// New creates a Client. The browser is started lazily on the first request.
func New(cfg Config, logger *utils.Logger) *Client {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	session := newBrowserSession(base, cfg.ChromeBin, timeout, logger)
	c := newClient(base, session, cfg.MaxRetries, 2*time.Second, logger)
	c.session = session
	return c
}

func newClient(baseURL string, fetcher pageFetcher, maxRetries int, baseDelay time.Duration, logger *utils.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		fetcher: fetcher,
		retry: &utils.RetryConfig{
			MaxAttempts: maxRetries,
			BaseDelay:   baseDelay,
			Logger:      logger,
		},
		logger: logger,
	}
}

// Start launches the browser session ahead of the first search.
func (c *Client) Start(ctx context.Context) error {
	if c.session == nil {
		return nil
	}
	return c.session.start(ctx)
}

// Close shuts the browser down.
func (c *Client) Close() {
	if c.session != nil {
		c.session.close()
	}
}

// Search returns up to limit newest catalog items matching the saved
// catalog URL.
func (c *Client) Search(ctx context.Context, queryURL string, limit int) ([]*models.RawItem, error) {
	params, err := apiParams(queryURL, limit)
	if err != nil {
		return nil, err
	}
	endpoint := c.baseURL + catalogPath + "?" + params.Encode()

	var items []*models.RawItem
	err = c.retry.Do(ctx, "catalog-search", func() error {
		status, body, err := c.fetcher.Fetch(ctx, endpoint)
		if err != nil {
			return err
		}

		switch {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			if rerr := c.fetcher.Refresh(ctx); rerr != nil {
				c.logger.Warn("[vinted] Session refresh failed: %v", rerr)
			}
			return ErrSessionExpired
		case status != http.StatusOK:
			return fmt.Errorf("vinted: catalog returned status %d", status)
		}

		items, err = c.decodeCatalog(body)
		return err
	})
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	c.logger.Debug("[vinted] %d items for %s", len(items), queryURL)
	return items, nil
}

func (c *Client) decodeCatalog(body []byte) ([]*models.RawItem, error) {
	var resp catalogResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("vinted: decode catalog: %w", err)
	}

	now := time.Now()
	items := make([]*models.RawItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		currency := it.Price.Currency
		if currency == "" {
			currency = it.Currency
		}
		itemURL := it.URL
		if itemURL == "" && it.ID != 0 {
			itemURL = c.baseURL + "/items/" + formatID(it.ID)
		}

		items = append(items, &models.RawItem{
			ID:           it.ID,
			Title:        it.Title,
			BrandTitle:   it.BrandTitle,
			RawPrice:     it.Price.Amount,
			Currency:     currency,
			PhotoURL:     it.photoURL(),
			URL:          itemURL,
			UserID:       it.User.ID,
			RawTimestamp: it.timestamp(),
			ScrapedAt:    now,
		})
	}
	return items, nil
}

// UserCountry resolves a seller's ISO country code. When the profile
// endpoint is rate limited it retries once against the seller's item list,
// which is throttled later. Any failure yields UnknownCountry.
func (c *Client) UserCountry(ctx context.Context, userID int64) string {
	id := formatID(userID)

	status, body, err := c.fetcher.Fetch(ctx, c.baseURL+"/api/v2/users/"+id+"?localize=false")
	if err != nil {
		c.logger.Warn("[vinted] User %s lookup failed: %v", id, err)
		return UnknownCountry
	}

	if status == http.StatusTooManyRequests {
		return c.userCountryFromItems(ctx, id)
	}
	if status != http.StatusOK {
		c.logger.Warn("[vinted] User %s lookup returned status %d", id, status)
		return UnknownCountry
	}

	var resp userResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.User.CountryISOCode == "" {
		return UnknownCountry
	}
	return strings.ToUpper(resp.User.CountryISOCode)
}

func (c *Client) userCountryFromItems(ctx context.Context, id string) string {
	status, body, err := c.fetcher.Fetch(ctx, c.baseURL+"/api/v2/users/"+id+"/items?page=1&per_page=1")
	if err != nil || status != http.StatusOK {
		c.logger.Warn("[vinted] Couldn't get the country of user %s due to too many requests", id)
		return UnknownCountry
	}

	var resp catalogResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Items) == 0 ||
		resp.Items[0].User.CountryISOCode == "" {
		c.logger.Warn("[vinted] Couldn't get the country of user %s due to too many requests", id)
		return UnknownCountry
	}
	return strings.ToUpper(resp.Items[0].User.CountryISOCode)
}

// apiParams translates a catalog page URL into catalog API query parameters.
func apiParams(queryURL string, perPage int) (url.Values, error) {
	u, err := url.Parse(strings.TrimSpace(queryURL))
	if err != nil {
		return nil, fmt.Errorf("vinted: parse query url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("vinted: query url %q has no host", queryURL)
	}
	q := u.Query()

	if perPage < 1 {
		perPage = 1
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	out := url.Values{}
	if text := strings.Join(q["search_text"], " "); text != "" {
		out.Set("search_text", text)
	}
	for _, m := range catalogParams {
		if vals := q[m.from]; len(vals) > 0 {
			out.Set(m.to, strings.Join(vals, ","))
		}
	}
	if len(q["disposal[]"]) > 0 {
		out.Set("is_for_swap", "1")
	}
	if out.Get("order") == "" {
		out.Set("order", "newest_first")
	}
	out.Set("page", "1")
	out.Set("per_page", strconv.Itoa(perPage))
	return out, nil
}
