package services

import (
	"testing"
	"time"

	"vinted-monitor/models"
)

func profitNote(title string, profit *float64, confidence string) *models.Notification {
	return &models.Notification{
		Item:       &models.Item{Title: title},
		Profit:     profit,
		Confidence: confidence,
	}
}

func ptr(f float64) *float64 { return &f }

func sampleStats() CycleStats {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	stats := CycleStats{
		StartedAt:  start,
		FinishedAt: start.Add(4 * time.Second),
		Queries:    3,
		Scraped:    40,
		Fresh:      6,
	}
	stats.Add(BatchResult{
		Stale:      1,
		Duplicates: 1,
		Notifications: []*models.Notification{
			profitNote("Plate", ptr(10), "Low"),
			profitNote("Vase", ptr(20.006), "High"),
		},
	})
	stats.Add(BatchResult{
		FuzzyRejected:   1,
		CountryFiltered: 1,
		Errors:          1,
		Notifications:   []*models.Notification{profitNote("Bowl", nil, "Low")},
	})
	return stats
}

func TestReportCounts(t *testing.T) {
	svc := NewReportService(newTestLogger())
	r := svc.Generate(sampleStats())

	if r.Queries != 3 || r.Scraped != 40 || r.Fresh != 6 {
		t.Errorf("scrape counters: got %d/%d/%d", r.Queries, r.Scraped, r.Fresh)
	}
	if r.Stale != 1 || r.Duplicates != 1 || r.FuzzyRejected != 1 || r.CountryFiltered != 1 {
		t.Errorf("skip counters: got %+v", r)
	}
	if r.Notified != 3 {
		t.Errorf("Notified: got %d, want 3", r.Notified)
	}
	if r.Errors != 1 {
		t.Errorf("Errors: got %d, want 1", r.Errors)
	}
	if r.ByConfidence["Low"] != 2 || r.ByConfidence["High"] != 1 {
		t.Errorf("ByConfidence: got %v", r.ByConfidence)
	}
}

func TestReportProfit(t *testing.T) {
	svc := NewReportService(newTestLogger())
	r := svc.Generate(sampleStats())

	if r.AverageProfit != 15 {
		t.Errorf("AverageProfit: got %.2f, want 15.00", r.AverageProfit)
	}
	if r.BestProfit != 20.01 {
		t.Errorf("BestProfit: got %.3f, want 20.01", r.BestProfit)
	}
	if r.BestDeal != "Vase" {
		t.Errorf("BestDeal: got %q", r.BestDeal)
	}
}

func TestReportWithoutNotifications(t *testing.T) {
	svc := NewReportService(newTestLogger())
	r := svc.Generate(CycleStats{Queries: 1})

	if r.Notified != 0 || r.AverageProfit != 0 || r.BestDeal != "" {
		t.Errorf("expected empty profit figures, got %+v", r)
	}
	svc.Print(r)
}

func TestReportLatestIsCopy(t *testing.T) {
	svc := NewReportService(newTestLogger())
	if svc.Latest() != nil {
		t.Fatal("Latest should be nil before the first cycle")
	}

	svc.Generate(sampleStats())
	first := svc.Latest()
	first.ByConfidence["Low"] = 99
	first.Notified = 0

	again := svc.Latest()
	if again.ByConfidence["Low"] != 2 || again.Notified != 3 {
		t.Errorf("Latest leaked internal state: %+v", again)
	}
	svc.Print(again)
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("Assiette en porcelaine", 10); got != "Assiett..." {
		t.Errorf("got %q", got)
	}
}
