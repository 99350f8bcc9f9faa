package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vinted-monitor/models"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return rows
}

func sampleNotification(id int64) *models.Notification {
	profit := 15.0
	median := 40.0
	return &models.Notification{
		Item: &models.Item{
			ID: id, Title: "Limoges plate, gold rim", Brand: "Haviland",
			Price: 25, Currency: "EUR", URL: "https://www.vinted.fr/items/1",
		},
		QueryID:        7,
		CanonicalQuery: "Haviland limoges",
		SoldMedian:     &median,
		SoldSamples:    3,
		Profit:         &profit,
		ProfitCurrency: "EUR",
		Confidence:     "Low",
		NotifiedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCSVWriterHeaderAndRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.csv")

	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}
	if err := w.WriteNotification(sampleNotification(1)); err != nil {
		t.Fatalf("WriteNotification: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 2 {
		t.Fatalf("rows: got %d, want 2", len(rows))
	}
	if rows[0][0] != "item_id" {
		t.Errorf("header: got %q", rows[0][0])
	}
	row := rows[1]
	checks := map[int]string{
		0: "1", 1: "7", 2: "Limoges plate, gold rim", 4: "25.00",
		8: "", 9: "40.00", 10: "3", 11: "15.00", 13: "Low", 14: "2024-05-01T12:00:00Z",
	}
	for idx, want := range checks {
		if row[idx] != want {
			t.Errorf("column %s: got %q, want %q", csvHeader[idx], row[idx], want)
		}
	}
}

func TestCSVWriterAppendsWithoutSecondHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.csv")

	for i := int64(1); i <= 2; i++ {
		w, err := NewCSVWriter(path)
		if err != nil {
			t.Fatalf("NewCSVWriter: %v", err)
		}
		if err := w.WriteNotification(sampleNotification(i)); err != nil {
			t.Fatalf("WriteNotification: %v", err)
		}
		_ = w.Close()
	}

	rows := readCSV(t, path)
	if len(rows) != 3 {
		t.Fatalf("rows: got %d, want 3", len(rows))
	}
	if rows[2][0] != "2" {
		t.Errorf("second item id: got %q", rows[2][0])
	}
}

func TestCSVWriterIgnoresEmptyNotification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.csv")
	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}
	defer w.Close()

	if err := w.WriteNotification(nil); err != nil {
		t.Errorf("nil notification: %v", err)
	}
	if err := w.WriteNotification(&models.Notification{}); err != nil {
		t.Errorf("empty notification: %v", err)
	}
}
