package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"vinted-monitor/models"
	"vinted-monitor/utils"
)

// CycleStats are the raw counters of one scrape cycle.
type CycleStats struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Queries    int
	Scraped    int
	Fresh      int
	BatchResult
}

// Add merges a batch outcome into the counters.
func (s *CycleStats) Add(r BatchResult) {
	s.Stale += r.Stale
	s.Duplicates += r.Duplicates
	s.CountryFiltered += r.CountryFiltered
	s.FuzzyRejected += r.FuzzyRejected
	s.Errors += r.Errors
	s.Notifications = append(s.Notifications, r.Notifications...)
}

// ReportService turns cycle counters into reports and keeps the latest one.
type ReportService struct {
	logger *utils.Logger

	mu     sync.RWMutex
	latest *models.CycleReport
}

func NewReportService(logger *utils.Logger) *ReportService {
	return &ReportService{logger: logger}
}

// Generate builds a report from the counters and stores it as the latest.
func (s *ReportService) Generate(stats CycleStats) *models.CycleReport {
	report := &models.CycleReport{
		StartedAt:       stats.StartedAt,
		FinishedAt:      stats.FinishedAt,
		Queries:         stats.Queries,
		Scraped:         stats.Scraped,
		Fresh:           stats.Fresh,
		Stale:           stats.Stale,
		Duplicates:      stats.Duplicates,
		CountryFiltered: stats.CountryFiltered,
		FuzzyRejected:   stats.FuzzyRejected,
		Notified:        len(stats.Notifications),
		Errors:          stats.Errors,
		ByConfidence:    make(map[string]int),
	}

	var total float64
	var priced int
	for _, n := range stats.Notifications {
		if n.Confidence != "" {
			report.ByConfidence[n.Confidence]++
		}
		if n.Profit == nil {
			continue
		}
		total += *n.Profit
		if priced == 0 || *n.Profit > report.BestProfit {
			report.BestProfit = *n.Profit
			if n.Item != nil {
				report.BestDeal = n.Item.Title
			}
		}
		priced++
	}
	if priced > 0 {
		report.AverageProfit = round2(total / float64(priced))
		report.BestProfit = round2(report.BestProfit)
	}

	s.mu.Lock()
	s.latest = report
	s.mu.Unlock()
	return report
}

// Latest returns a copy of the most recent report, or nil before the first
// cycle completes.
func (s *ReportService) Latest() *models.CycleReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil
	}
	cp := *s.latest
	cp.ByConfidence = make(map[string]int, len(s.latest.ByConfidence))
	for k, v := range s.latest.ByConfidence {
		cp.ByConfidence[k] = v
	}
	return &cp
}

// Print logs the report.
func (s *ReportService) Print(r *models.CycleReport) {
	s.logger.Info("[report] Cycle done in %v: %d queries, %d scraped, %d new, %d notified, %d errors",
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond), r.Queries, r.Scraped, r.Fresh, r.Notified, r.Errors)
	s.logger.Info("[report] Skipped: %d seen, %d duplicates, %d by country, %d by fuzzy match",
		r.Stale, r.Duplicates, r.CountryFiltered, r.FuzzyRejected)

	if r.Notified == 0 {
		return
	}
	if r.BestDeal != "" {
		s.logger.Info("[report] Profit: avg %.2f, best %.2f (%s)", r.AverageProfit, r.BestProfit, truncate(r.BestDeal, 50))
	}

	labels := make([]string, 0, len(r.ByConfidence))
	for label := range r.ByConfidence {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		ci, cj := r.ByConfidence[labels[i]], r.ByConfidence[labels[j]]
		if ci != cj {
			return ci > cj
		}
		return labels[i] < labels[j]
	})
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, label+" "+strings.Repeat("█", r.ByConfidence[label]))
	}
	s.logger.Info("[report] Confidence: %s", strings.Join(parts, " | "))
}

func round2(f float64) float64 {
	if f < 0 {
		return -round2(-f)
	}
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
