package services

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"sort"
	"text/template"
	"time"

	"vinted-monitor/fuzzy"
	"vinted-monitor/models"
	"vinted-monitor/scraper/vinted"
	"vinted-monitor/storage"
	"vinted-monitor/utils"
	"vinted-monitor/valuation"
)

// OpenListingLabel is the caption of the action button attached to alerts.
const OpenListingLabel = "Open Vinted"

// ItemRepository is the part of the store the item pipeline needs.
type ItemRepository interface {
	LastTimestamp(ctx context.Context, queryID int64) (int64, bool, error)
	UpdateLastTimestamp(ctx context.Context, queryID, ts int64) error
	ItemExists(ctx context.Context, id int64) (bool, error)
	AddItem(ctx context.Context, item *models.Item, queryID int64) error
	Allowlist(ctx context.Context) ([]string, error)
}

// CountryResolver looks up a seller's country code.
type CountryResolver interface {
	UserCountry(ctx context.Context, userID int64) string
}

// Valuator prices a matched listing.
type Valuator interface {
	Evaluate(ctx context.Context, title, brand string, price float64, currency, baseSearchText string, match *fuzzy.Match) valuation.ValuationResult
}

// Notifier delivers a rendered alert with one action button.
type Notifier interface {
	Send(ctx context.Context, text, actionURL, actionLabel string) error
}

// BatchResult counts what happened to the items of one batch.
type BatchResult struct {
	Stale           int
	Duplicates      int
	CountryFiltered int
	FuzzyRejected   int
	Errors          int
	Notifications   []*models.Notification
}

// ItemProcessor filters a batch of fresh items, values the survivors and
// sends one alert per item.
type ItemProcessor struct {
	store     ItemRepository
	countries CountryResolver
	matcher   *fuzzy.Matcher
	valuator  Valuator
	notifier  Notifier
	journal   storage.NotificationWriter
	tmpl      *template.Template
	logger    *utils.Logger
	now       func() time.Time
}

// ProcessorDeps wires an ItemProcessor. Journal and Template are optional.
type ProcessorDeps struct {
	Store     ItemRepository
	Countries CountryResolver
	Matcher   *fuzzy.Matcher
	Valuator  Valuator
	Notifier  Notifier
	Journal   storage.NotificationWriter
	Template  *template.Template
	Logger    *utils.Logger
}

// NewItemProcessor creates an ItemProcessor.
func NewItemProcessor(d ProcessorDeps) *ItemProcessor {
	logger := d.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	matcher := d.Matcher
	if matcher == nil {
		matcher = fuzzy.NewMatcher(fuzzy.DefaultThreshold)
	}
	return &ItemProcessor{
		store:     d.Store,
		countries: d.Countries,
		matcher:   matcher,
		valuator:  d.Valuator,
		notifier:  d.Notifier,
		journal:   d.Journal,
		tmpl:      d.Template,
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessBatch walks the batch oldest-first. Every item that is skipped
// after the freshness check still advances the query's timestamp marker so
// it is not examined again.
func (p *ItemProcessor) ProcessBatch(ctx context.Context, batch models.Batch) BatchResult {
	var res BatchResult

	base := baseSearchText(batch)

	allowlist, err := p.store.Allowlist(ctx)
	if err != nil {
		p.logger.Error("[processor] Allowlist lookup failed: %v", err)
		res.Errors++
		return res
	}

	items := make([]*models.Item, 0, len(batch.Items))
	for _, it := range batch.Items {
		if it != nil {
			items = append(items, it)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Timestamp < items[j].Timestamp })

	for _, item := range items {
		if ctx.Err() != nil {
			return res
		}

		last, ok, err := p.store.LastTimestamp(ctx, batch.QueryID)
		if errors.Is(err, storage.ErrNotFound) {
			p.logger.Debug("[processor] Query %d no longer exists, dropping batch", batch.QueryID)
			return res
		}
		if err != nil {
			p.logger.Error("[processor] Last timestamp of query %d: %v", batch.QueryID, err)
			res.Errors++
			continue
		}
		if ok && last >= item.Timestamp {
			res.Stale++
			continue
		}

		exists, err := p.store.ItemExists(ctx, item.ID)
		if err != nil {
			p.logger.Error("[processor] Item %d lookup failed: %v", item.ID, err)
			res.Errors++
			continue
		}
		if exists {
			p.bump(ctx, batch.QueryID, item)
			res.Duplicates++
			continue
		}

		if len(allowlist) > 0 && !p.countryAllowed(ctx, item, allowlist) {
			p.bump(ctx, batch.QueryID, item)
			res.CountryFiltered++
			continue
		}

		var match *fuzzy.Match
		if base != "" {
			match = p.matcher.Match(base, item.Title, item.Brand)
			if match == nil {
				p.bump(ctx, batch.QueryID, item)
				p.logger.Debug("[processor] Skipping item %d for query %d due to fuzzy mismatch against '%s'",
					item.ID, batch.QueryID, base)
				res.FuzzyRejected++
				continue
			}
		}

		n, err := p.notify(ctx, batch.QueryID, item, base, match)
		if err != nil {
			p.logger.Error("[processor] Item %d: %v", item.ID, err)
			res.Errors++
			continue
		}
		res.Notifications = append(res.Notifications, n)
	}

	return res
}

func (p *ItemProcessor) notify(ctx context.Context, queryID int64, item *models.Item, base string, match *fuzzy.Match) (*models.Notification, error) {
	v := p.valuator.Evaluate(ctx, item.Title, item.Brand, item.Price, item.Currency, base, match)

	text, err := RenderMessage(item, v, p.tmpl)
	if err != nil {
		return nil, err
	}
	if err := p.notifier.Send(ctx, text, item.URL, OpenListingLabel); err != nil {
		return nil, err
	}

	if err := p.store.AddItem(ctx, item, queryID); err != nil {
		// The alert already went out; count it anyway.
		p.logger.Error("[processor] Store item %d: %v", item.ID, err)
	}

	n := &models.Notification{
		Item:           item,
		QueryID:        queryID,
		CanonicalQuery: v.Normalization.CanonicalQuery,
		FuzzyScore:     v.Normalization.FuzzyScore,
		SoldMedian:     v.SoldSummary.Median,
		SoldSamples:    v.SoldSummary.SampleSize,
		Profit:         v.Profit,
		ProfitCurrency: v.ProfitCurrency,
		Confidence:     v.ConfidenceLabel,
		NotifiedAt:     p.now(),
	}
	if p.journal != nil {
		if err := p.journal.WriteNotification(n); err != nil {
			p.logger.Warn("[processor] Journal write failed: %v", err)
		}
	}

	p.logger.Info("[processor] Notified item %d (%s) for query %d", item.ID, item.Title, queryID)
	return n, nil
}

func (p *ItemProcessor) countryAllowed(ctx context.Context, item *models.Item, allowlist []string) bool {
	if p.countries == nil {
		return true
	}
	country := p.countries.UserCountry(ctx, item.UserID)
	return country == vinted.UnknownCountry || slices.Contains(allowlist, country)
}

func (p *ItemProcessor) bump(ctx context.Context, queryID int64, item *models.Item) {
	if err := p.store.UpdateLastTimestamp(ctx, queryID, item.Timestamp); err != nil {
		p.logger.Warn("[processor] Update timestamp of query %d: %v", queryID, err)
	}
}

// baseSearchText is the phrase the query was created with: the encoded
// stored name first, then the search_text of the query URL.
func baseSearchText(batch models.Batch) string {
	if _, base := fuzzy.DecodeQueryName(batch.StoredName); base != "" {
		return base
	}
	if batch.QueryURL == "" {
		return ""
	}
	u, err := url.Parse(batch.QueryURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("search_text")
}
