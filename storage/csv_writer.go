package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"vinted-monitor/models"
)

var csvHeader = []string{
	"item_id", "query_id", "title", "brand", "price", "currency", "url",
	"canonical_query", "fuzzy_score", "sold_median", "sold_samples",
	"profit", "profit_currency", "confidence", "notified_at",
}

// CSVWriter appends notified items to a CSV journal.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   io.WriteCloser
	writer *csv.Writer
}

// NewCSVWriter opens (or creates) the journal at path in append mode. The
// header row is written only to a new or empty file. Intermediate
// directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open file %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: stat %q: %w", path, err)
	}

	c := &CSVWriter{file: f, writer: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := c.writer.Write(csvHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		c.writer.Flush()
	}
	return c, nil
}

// WriteNotification appends one row and flushes it.
func (c *CSVWriter) WriteNotification(n *models.Notification) error {
	if n == nil || n.Item == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	it := n.Item
	row := []string{
		strconv.FormatInt(it.ID, 10),
		strconv.FormatInt(n.QueryID, 10),
		it.Title,
		it.Brand,
		strconv.FormatFloat(it.Price, 'f', 2, 64),
		it.Currency,
		it.URL,
		n.CanonicalQuery,
		formatOptional(n.FuzzyScore),
		formatOptional(n.SoldMedian),
		strconv.Itoa(n.SoldSamples),
		formatOptional(n.Profit),
		n.ProfitCurrency,
		n.Confidence,
		n.NotifiedAt.Format(time.RFC3339),
	}
	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("csv: write row: %w", err)
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	return c.file.Close()
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
