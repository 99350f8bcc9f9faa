package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vinted-monitor/models"
	"vinted-monitor/utils"
)

const defaultQueueSize = 256

// Searcher fetches the newest catalog items of a saved query.
type Searcher interface {
	Search(ctx context.Context, queryURL string, limit int) ([]*models.RawItem, error)
}

// QueryLister lists the saved queries.
type QueryLister interface {
	ListQueries(ctx context.Context) ([]*models.Query, error)
}

// MonitorConfig controls the scrape and drain schedule.
type MonitorConfig struct {
	ItemsPerQuery  int
	NewItemMaxAge  time.Duration
	ScrapeInterval time.Duration
	DrainInterval  time.Duration
	MaxConcurrency int
	RateLimitMs    int
	QueueSize      int
}

// Monitor scrapes every saved query on a schedule and feeds the fresh items
// through the ItemProcessor, one batch per drain tick.
type Monitor struct {
	cfg       MonitorConfig
	queries   QueryLister
	searcher  Searcher
	cleaner   *Cleaner
	processor *ItemProcessor
	reports   *ReportService
	logger    *utils.Logger

	queue chan queuedBatch
	now   func() time.Time
}

type queuedBatch struct {
	batch models.Batch
	cycle *cycle
}

// cycle tracks one scrape pass until its last batch is drained.
type cycle struct {
	mu      sync.Mutex
	stats   CycleStats
	pending int
	scraped bool
	done    bool
}

// NewMonitor creates a Monitor.
func NewMonitor(cfg MonitorConfig, queries QueryLister, searcher Searcher, cleaner *Cleaner,
	processor *ItemProcessor, reports *ReportService, logger *utils.Logger) *Monitor {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.ItemsPerQuery < 1 {
		cfg.ItemsPerQuery = 20
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = 100 * time.Millisecond
	}
	if cfg.ScrapeInterval <= 0 {
		cfg.ScrapeInterval = time.Minute
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Monitor{
		cfg:       cfg,
		queries:   queries,
		searcher:  searcher,
		cleaner:   cleaner,
		processor: processor,
		reports:   reports,
		logger:    logger,
		queue:     make(chan queuedBatch, cfg.QueueSize),
		now:       time.Now,
	}
}

// RunCycle scrapes every saved query once and queues the items posted
// within NewItemMaxAge. Queries are searched through a bounded worker pool.
func (m *Monitor) RunCycle(ctx context.Context) error {
	queries, err := m.queries.ListQueries(ctx)
	if err != nil {
		return fmt.Errorf("monitor: list queries: %w", err)
	}

	c := &cycle{stats: CycleStats{StartedAt: m.now(), Queries: len(queries)}}
	pool := utils.NewWorkerPool(m.cfg.MaxConcurrency, m.cfg.RateLimitMs)
	seen := utils.NewIDSet()

	for _, q := range queries {
		q := q
		pool.Submit(func() {
			if ctx.Err() != nil {
				return
			}
			m.scrapeQuery(ctx, q, c, seen)
		})
	}
	pool.Wait()

	c.mu.Lock()
	c.stats.Scraped = seen.Size()
	c.scraped = true
	c.mu.Unlock()

	m.finish(c)
	return ctx.Err()
}

func (m *Monitor) scrapeQuery(ctx context.Context, q *models.Query, c *cycle, seen *utils.IDSet) {
	raw, err := m.searcher.Search(ctx, q.URL, m.cfg.ItemsPerQuery)
	if err != nil {
		m.logger.Error("[monitor] Search failed for query %d: %v", q.ID, err)
		c.mu.Lock()
		c.stats.Errors++
		c.mu.Unlock()
		return
	}

	items := m.cleaner.Clean(raw)
	now := m.now()
	fresh := make([]*models.Item, 0, len(items))
	for _, it := range items {
		seen.Add(it.ID)
		if it.IsNew(now, m.cfg.NewItemMaxAge) {
			fresh = append(fresh, it)
		}
	}
	m.logger.Info("[monitor] Scraped %d items for query: %s", len(fresh), q.URL)
	if len(fresh) == 0 {
		return
	}

	c.mu.Lock()
	c.stats.Fresh += len(fresh)
	c.pending++
	c.mu.Unlock()

	qb := queuedBatch{
		batch: models.Batch{Items: fresh, QueryID: q.ID, QueryURL: q.URL, StoredName: q.StoredName},
		cycle: c,
	}
	select {
	case m.queue <- qb:
	case <-ctx.Done():
		c.mu.Lock()
		c.pending--
		c.mu.Unlock()
	}
}

// Drain processes at most one queued batch. It reports whether a batch was
// taken from the queue.
func (m *Monitor) Drain(ctx context.Context) bool {
	select {
	case qb := <-m.queue:
		res := m.processor.ProcessBatch(ctx, qb.batch)

		qb.cycle.mu.Lock()
		qb.cycle.stats.Add(res)
		qb.cycle.pending--
		qb.cycle.mu.Unlock()

		m.finish(qb.cycle)
		return true
	default:
		return false
	}
}

// Pending is the number of batches waiting in the queue.
func (m *Monitor) Pending() int {
	return len(m.queue)
}

// finish reports the cycle once scraping is over and all its batches have
// been drained.
func (m *Monitor) finish(c *cycle) {
	c.mu.Lock()
	if !c.scraped || c.pending > 0 || c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	c.stats.FinishedAt = m.now()
	stats := c.stats
	c.mu.Unlock()

	if m.reports != nil {
		m.reports.Print(m.reports.Generate(stats))
	}
}

// Run scrapes on ScrapeInterval and drains on DrainInterval until ctx is
// cancelled. The first cycle starts immediately.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("[monitor] Running: scrape every %v, drain every %v", m.cfg.ScrapeInterval, m.cfg.DrainInterval)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.scrapeLoop(ctx)
	}()

	ticker := time.NewTicker(m.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			m.logger.Info("[monitor] Stopped")
			return nil
		case <-ticker.C:
			m.Drain(ctx)
		}
	}
}

func (m *Monitor) scrapeLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.ScrapeInterval)
	defer ticker.Stop()

	for {
		if err := m.RunCycle(ctx); err != nil && ctx.Err() == nil {
			m.logger.Error("[monitor] Cycle failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
