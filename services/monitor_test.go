package services

import (
	"context"
	"testing"
	"time"

	"vinted-monitor/fuzzy"
	"vinted-monitor/models"
)

type monitorFixture struct {
	store    *fakeStore
	searcher *fakeSearcher
	notifier *fakeNotifier
	reports  *ReportService
	monitor  *Monitor
	now      time.Time
}

func newMonitorFixture(t *testing.T) *monitorFixture {
	t.Helper()
	f := &monitorFixture{
		store:    newFakeStore(),
		searcher: &fakeSearcher{results: map[string][]*models.RawItem{}, fail: map[string]bool{}},
		notifier: &fakeNotifier{},
		reports:  NewReportService(newTestLogger()),
		now:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	processor := NewItemProcessor(ProcessorDeps{
		Store:    f.store,
		Matcher:  fuzzy.NewMatcher(fuzzy.DefaultThreshold),
		Valuator: &fakeValuator{result: lowConfidenceResult()},
		Notifier: f.notifier,
		Logger:   newTestLogger(),
	})
	processor.now = func() time.Time { return f.now }

	f.monitor = NewMonitor(MonitorConfig{
		ItemsPerQuery:  20,
		NewItemMaxAge:  3 * time.Minute,
		MaxConcurrency: 2,
	}, f.store, f.searcher, NewCleaner(newTestLogger()), processor, f.reports, newTestLogger())
	f.monitor.now = func() time.Time { return f.now }
	return f
}

func (f *monitorFixture) raw(id int64, title string, age time.Duration) *models.RawItem {
	return &models.RawItem{
		ID:           id,
		Title:        title,
		RawPrice:     "10",
		Currency:     "EUR",
		URL:          "https://www.vinted.fr/items/x",
		RawTimestamp: f.now.Add(-age).Unix(),
	}
}

func (f *monitorFixture) drainAll(ctx context.Context) int {
	n := 0
	for f.monitor.Drain(ctx) {
		n++
	}
	return n
}

func TestMonitorCycle(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	plates := "https://www.vinted.fr/catalog?order=newest_first&search_text=limoges"
	vases := "https://www.vinted.fr/catalog?order=newest_first&search_text=vase"
	f.store.AddQuery(ctx, plates, "Plates||limoges")
	f.store.AddQuery(ctx, vases, "Vases||vase")

	f.searcher.results[plates] = []*models.RawItem{
		f.raw(1, "Assiette Limoges", 30*time.Second),
		f.raw(2, "Plat Limoges", 10*time.Minute),
		f.raw(3, "Nike shoes", time.Minute),
	}
	f.searcher.results[vases] = []*models.RawItem{
		f.raw(1, "Assiette Limoges", 30*time.Second),
		f.raw(4, "Vase bleu", time.Minute),
	}

	if err := f.monitor.RunCycle(ctx); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if f.monitor.Pending() != 2 {
		t.Fatalf("Pending: got %d, want 2", f.monitor.Pending())
	}
	if f.reports.Latest() != nil {
		t.Fatal("report must wait until the queue is drained")
	}

	if n := f.drainAll(ctx); n != 2 {
		t.Fatalf("drained %d batches, want 2", n)
	}

	r := f.reports.Latest()
	if r == nil {
		t.Fatal("no report after drain")
	}
	if r.Queries != 2 || r.Scraped != 4 || r.Fresh != 4 {
		t.Errorf("scrape counters: queries=%d scraped=%d fresh=%d", r.Queries, r.Scraped, r.Fresh)
	}
	// "Nike shoes" never matches "limoges". Item 1 is either rejected by
	// "vase" or, when the plates batch ran first, already stored.
	if r.FuzzyRejected+r.Duplicates != 2 {
		t.Errorf("FuzzyRejected+Duplicates: got %d+%d, want 2", r.FuzzyRejected, r.Duplicates)
	}
	if r.Notified != 2 {
		t.Errorf("Notified: got %d, want 2", r.Notified)
	}
	if len(f.notifier.sent) != 2 {
		t.Errorf("sent: got %d, want 2", len(f.notifier.sent))
	}
}

func TestMonitorCountsSearchErrors(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	broken := "https://www.vinted.fr/catalog?search_text=broken"
	f.store.AddQuery(ctx, broken, "")
	f.searcher.fail[broken] = true

	if err := f.monitor.RunCycle(ctx); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	// nothing was queued, so the cycle reports right away
	r := f.reports.Latest()
	if r == nil {
		t.Fatal("expected a report")
	}
	if r.Errors != 1 || r.Notified != 0 {
		t.Errorf("got errors=%d notified=%d", r.Errors, r.Notified)
	}
	if f.monitor.Drain(ctx) {
		t.Error("Drain should find an empty queue")
	}
}

func TestMonitorSkipsQueriesWithoutFreshItems(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	q := "https://www.vinted.fr/catalog?search_text=limoges"
	f.store.AddQuery(ctx, q, "")
	f.searcher.results[q] = []*models.RawItem{f.raw(1, "Assiette Limoges", time.Hour)}

	if err := f.monitor.RunCycle(ctx); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if f.monitor.Pending() != 0 {
		t.Errorf("Pending: got %d, want 0", f.monitor.Pending())
	}
	if r := f.reports.Latest(); r == nil || r.Fresh != 0 || r.Scraped != 1 {
		t.Errorf("unexpected report %+v", r)
	}
}

func TestMonitorRunStopsOnCancel(t *testing.T) {
	f := newMonitorFixture(t)
	f.monitor.cfg.DrainInterval = time.Millisecond
	f.monitor.cfg.ScrapeInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.monitor.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
