package storage

import (
	"context"
	"errors"

	"vinted-monitor/models"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("storage: not found")

// QueryStore persists saved searches and their progress markers.
type QueryStore interface {
	AddQuery(ctx context.Context, url, storedName string) (int64, error)
	QueryExists(ctx context.Context, url string) (bool, error)
	ListQueries(ctx context.Context) ([]*models.Query, error)
	RemoveQuery(ctx context.Context, id int64) error
	RemoveAllQueries(ctx context.Context) error
	// LastTimestamp reports ok=false when the query has not handled an item yet.
	LastTimestamp(ctx context.Context, queryID int64) (ts int64, ok bool, err error)
	UpdateLastTimestamp(ctx context.Context, queryID, ts int64) error
}

// ItemStore remembers items that were already notified.
type ItemStore interface {
	ItemExists(ctx context.Context, id int64) (bool, error)
	AddItem(ctx context.Context, item *models.Item, queryID int64) error
}

// AllowlistStore holds the seller countries accepted for notifications.
// An empty allowlist accepts every country.
type AllowlistStore interface {
	Allowlist(ctx context.Context) ([]string, error)
	AddCountry(ctx context.Context, code string) error
	RemoveCountry(ctx context.Context, code string) error
}

// Store is the full persistence backend.
type Store interface {
	QueryStore
	ItemStore
	AllowlistStore
	Ping(ctx context.Context) error
	Close() error
}

// NotificationWriter journals notified items outside the database.
type NotificationWriter interface {
	WriteNotification(n *models.Notification) error
	Close() error
}
