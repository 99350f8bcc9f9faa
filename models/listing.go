package models

import "time"

// RawItem holds a catalog entry as returned by the marketplace API.
// Nothing has been validated yet.
type RawItem struct {
	ID           int64
	Title        string
	BrandTitle   string
	RawPrice     string
	Currency     string
	PhotoURL     string
	URL          string
	UserID       int64
	RawTimestamp int64
	ScrapedAt    time.Time
}

// Item is a cleaned catalog entry ready for matching and valuation.
type Item struct {
	ID        int64
	Title     string
	Brand     string
	Price     float64
	Currency  string
	PhotoURL  string
	URL       string
	UserID    int64
	Timestamp int64
	ScrapedAt time.Time
}

// PostedAt is the upload time of the item's main photo.
func (i *Item) PostedAt() time.Time {
	return time.Unix(i.Timestamp, 0)
}

// IsNew reports whether the item was posted within maxAge of now.
func (i *Item) IsNew(now time.Time, maxAge time.Duration) bool {
	if i.Timestamp <= 0 {
		return false
	}
	return now.Sub(i.PostedAt()) <= maxAge
}

// Query is a saved catalog search.
type Query struct {
	ID         int64
	URL        string
	StoredName string
	// LastTimestamp is the newest item timestamp handled for this query.
	LastTimestamp *int64
	CreatedAt     time.Time
}

// Batch is one query's freshly scraped items, queued for processing.
type Batch struct {
	Items      []*Item
	QueryID    int64
	QueryURL   string
	StoredName string
}

// Notification records an item that was sent to the chat.
type Notification struct {
	Item           *Item
	QueryID        int64
	CanonicalQuery string
	FuzzyScore     *float64
	SoldMedian     *float64
	SoldSamples    int
	Profit         *float64
	ProfitCurrency string
	Confidence     string
	NotifiedAt     time.Time
}

// CycleReport summarizes one scrape and drain cycle.
type CycleReport struct {
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
	Queries         int            `json:"queries"`
	Scraped         int            `json:"scraped"`
	Fresh           int            `json:"fresh"`
	Stale           int            `json:"stale"`
	Duplicates      int            `json:"duplicates"`
	CountryFiltered int            `json:"country_filtered"`
	FuzzyRejected   int            `json:"fuzzy_rejected"`
	Notified        int            `json:"notified"`
	Errors          int            `json:"errors"`
	AverageProfit   float64        `json:"average_profit"`
	BestProfit      float64        `json:"best_profit"`
	BestDeal        string         `json:"best_deal,omitempty"`
	ByConfidence    map[string]int `json:"by_confidence"`
}
