package services

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"vinted-monitor/models"
	"vinted-monitor/utils"
)

// priceRegexp captures the first numeric amount, with either decimal separator.
var priceRegexp = regexp.MustCompile(`\d[\d\s.,]*`)

// Cleaner transforms RawItems into clean, validated Items.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean drops items without an ID, collapses duplicates and parses prices.
// The input order is preserved.
func (c *Cleaner) Clean(raw []*models.RawItem) []*models.Item {
	seen := make(map[int64]struct{})
	result := make([]*models.Item, 0, len(raw))

	for _, r := range raw {
		if r == nil || r.ID == 0 {
			c.logger.Warn("[cleaner] Dropping item without id")
			continue
		}

		if _, dup := seen[r.ID]; dup {
			c.logger.Debug("[cleaner] Duplicate item skipped: %d", r.ID)
			continue
		}
		seen[r.ID] = struct{}{}

		result = append(result, &models.Item{
			ID:        r.ID,
			Title:     normaliseText(r.Title),
			Brand:     normaliseText(r.BrandTitle),
			Price:     parsePrice(r.RawPrice),
			Currency:  strings.ToUpper(strings.TrimSpace(r.Currency)),
			PhotoURL:  strings.TrimSpace(r.PhotoURL),
			URL:       strings.TrimSpace(r.URL),
			UserID:    r.UserID,
			Timestamp: r.RawTimestamp,
			ScrapedAt: r.ScrapedAt,
		})
	}

	if dropped := len(raw) - len(result); dropped > 0 {
		c.logger.Debug("[cleaner] Cleaned %d → %d items (dropped %d)", len(raw), len(result), dropped)
	}
	return result
}

// parsePrice extracts an amount from the catalog price text.
// Examples:
//
//	"12.5"      → 12.5
//	"12,50 €"   → 12.5
//	"1 234,00"  → 1234
//	"1,234.00"  → 1234
func parsePrice(raw string) float64 {
	match := priceRegexp.FindString(raw)
	if match == "" {
		return 0
	}
	match = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, match)
	match = strings.TrimRight(match, ".,")

	decimal := strings.LastIndexAny(match, ".,")
	if decimal >= 0 && strings.Count(match, match[decimal:decimal+1]) > 1 {
		// a repeated separator only groups thousands
		decimal = -1
	}

	var b strings.Builder
	for i, r := range match {
		switch {
		case i == decimal:
			b.WriteByte('.')
		case r == '.' || r == ',':
		default:
			b.WriteRune(r)
		}
	}

	price, err := strconv.ParseFloat(b.String(), 64)
	if err != nil || price < 0 {
		return 0
	}
	return price
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
