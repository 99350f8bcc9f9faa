package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/lib/pq"              // registers the "postgres" driver

	"vinted-monitor/models"
)

const (
	pingAttempts = 10
	pingInterval = 2 * time.Second
)

// PostgresStore persists queries, notified items and the country allowlist.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection with the given database/sql driver
// ("postgres" for lib/pq, "pgx" for pgx), waits for the server, runs schema
// migrations and returns a ready-to-use store.
func NewPostgresStore(ctx context.Context, driver, dsn string) (*PostgresStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	for i := 0; i < pingAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("postgres: ping: %w", ctx.Err())
		case <-time.After(pingInterval):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return ps, nil
}

// NewPostgresStoreFromDB wraps an already opened handle without migrating.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS queries (
			id          BIGSERIAL    PRIMARY KEY,
			url         TEXT         UNIQUE NOT NULL,
			stored_name TEXT         NOT NULL DEFAULT '',
			last_item   BIGINT,
			created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS items (
			id          BIGINT        PRIMARY KEY,
			title       TEXT          NOT NULL DEFAULT '',
			price       NUMERIC(12,2) NOT NULL DEFAULT 0,
			currency    VARCHAR(8)    NOT NULL DEFAULT '',
			photo_url   TEXT          NOT NULL DEFAULT '',
			query_id    BIGINT        REFERENCES queries(id) ON DELETE SET NULL,
			posted_at   BIGINT        NOT NULL DEFAULT 0,
			created_at  TIMESTAMPTZ   NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS allowlist (
			country     CHAR(2)      PRIMARY KEY
		);

		CREATE INDEX IF NOT EXISTS idx_items_query_id ON items(query_id);
	`)
	return err
}

// Ping checks the connection.
func (ps *PostgresStore) Ping(ctx context.Context) error {
	return ps.db.PingContext(ctx)
}

func (ps *PostgresStore) AddQuery(ctx context.Context, url, storedName string) (int64, error) {
	var id int64
	err := ps.db.QueryRowContext(ctx, `
		INSERT INTO queries (url, stored_name)
		VALUES ($1, $2)
		ON CONFLICT (url) DO UPDATE SET stored_name = EXCLUDED.stored_name
		RETURNING id
	`, url, storedName).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: add query: %w", err)
	}
	return id, nil
}

func (ps *PostgresStore) QueryExists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := ps.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM queries WHERE url = $1)`, url).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: query exists: %w", err)
	}
	return exists, nil
}

// ListQueries returns saved queries in insertion order.
func (ps *PostgresStore) ListQueries(ctx context.Context) ([]*models.Query, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT id, url, stored_name, last_item, created_at
		FROM queries
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list queries: %w", err)
	}
	defer rows.Close()

	var queries []*models.Query
	for rows.Next() {
		q := &models.Query{}
		var last sql.NullInt64
		if err := rows.Scan(&q.ID, &q.URL, &q.StoredName, &last, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan query: %w", err)
		}
		if last.Valid {
			ts := last.Int64
			q.LastTimestamp = &ts
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

func (ps *PostgresStore) RemoveQuery(ctx context.Context, id int64) error {
	res, err := ps.db.ExecContext(ctx, `DELETE FROM queries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: remove query: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (ps *PostgresStore) RemoveAllQueries(ctx context.Context) error {
	if _, err := ps.db.ExecContext(ctx, `DELETE FROM queries`); err != nil {
		return fmt.Errorf("postgres: remove all queries: %w", err)
	}
	return nil
}

func (ps *PostgresStore) LastTimestamp(ctx context.Context, queryID int64) (int64, bool, error) {
	var last sql.NullInt64
	err := ps.db.QueryRowContext(ctx, `SELECT last_item FROM queries WHERE id = $1`, queryID).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, ErrNotFound
	}
	if err != nil {
		return 0, false, fmt.Errorf("postgres: last timestamp: %w", err)
	}
	return last.Int64, last.Valid, nil
}

// UpdateLastTimestamp only moves the marker forward.
func (ps *PostgresStore) UpdateLastTimestamp(ctx context.Context, queryID, ts int64) error {
	_, err := ps.db.ExecContext(ctx, `
		UPDATE queries
		SET last_item = GREATEST(COALESCE(last_item, 0), $2)
		WHERE id = $1
	`, queryID, ts)
	if err != nil {
		return fmt.Errorf("postgres: update last timestamp: %w", err)
	}
	return nil
}

func (ps *PostgresStore) ItemExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := ps.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM items WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: item exists: %w", err)
	}
	return exists, nil
}

// AddItem stores a notified item and advances its query's marker in one
// transaction.
func (ps *PostgresStore) AddItem(ctx context.Context, item *models.Item, queryID int64) error {
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO items (id, title, price, currency, photo_url, query_id, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, item.ID, item.Title, item.Price, item.Currency, item.PhotoURL, queryID, item.Timestamp); err != nil {
		return fmt.Errorf("postgres: insert item: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE queries
		SET last_item = GREATEST(COALESCE(last_item, 0), $2)
		WHERE id = $1
	`, queryID, item.Timestamp); err != nil {
		return fmt.Errorf("postgres: update last timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Allowlist(ctx context.Context) ([]string, error) {
	rows, err := ps.db.QueryContext(ctx, `SELECT country FROM allowlist ORDER BY country`)
	if err != nil {
		return nil, fmt.Errorf("postgres: allowlist: %w", err)
	}
	defer rows.Close()

	var countries []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("postgres: scan country: %w", err)
		}
		countries = append(countries, strings.TrimSpace(c))
	}
	return countries, rows.Err()
}

func (ps *PostgresStore) AddCountry(ctx context.Context, code string) error {
	_, err := ps.db.ExecContext(ctx,
		`INSERT INTO allowlist (country) VALUES ($1) ON CONFLICT (country) DO NOTHING`, code)
	if err != nil {
		return fmt.Errorf("postgres: add country: %w", err)
	}
	return nil
}

func (ps *PostgresStore) RemoveCountry(ctx context.Context, code string) error {
	if _, err := ps.db.ExecContext(ctx, `DELETE FROM allowlist WHERE country = $1`, code); err != nil {
		return fmt.Errorf("postgres: remove country: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
