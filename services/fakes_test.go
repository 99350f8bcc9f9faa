package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"vinted-monitor/fuzzy"
	"vinted-monitor/models"
	"vinted-monitor/storage"
	"vinted-monitor/valuation"
)

// fakeStore is an in-memory storage.Store.
type fakeStore struct {
	mu         sync.Mutex
	nextID     int64
	queries    []*models.Query
	items      map[int64]*models.Item
	allow      []string
	lastTS     map[int64]int64
	allowErr   error
	addItemErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:  make(map[int64]*models.Item),
		lastTS: make(map[int64]int64),
	}
}

func (s *fakeStore) AddQuery(_ context.Context, url, storedName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.queries = append(s.queries, &models.Query{ID: s.nextID, URL: url, StoredName: storedName, CreatedAt: time.Now()})
	return s.nextID, nil
}

func (s *fakeStore) QueryExists(_ context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.queries {
		if q.URL == url {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) ListQueries(context.Context) ([]*models.Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Query, len(s.queries))
	copy(out, s.queries)
	return out, nil
}

func (s *fakeStore) RemoveQuery(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.queries {
		if q.ID == id {
			s.queries = append(s.queries[:i], s.queries[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *fakeStore) RemoveAllQueries(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = nil
	return nil
}

func (s *fakeStore) hasQuery(id int64) bool {
	for _, q := range s.queries {
		if q.ID == id {
			return true
		}
	}
	return false
}

func (s *fakeStore) LastTimestamp(_ context.Context, queryID int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasQuery(queryID) {
		return 0, false, storage.ErrNotFound
	}
	ts, ok := s.lastTS[queryID]
	return ts, ok, nil
}

func (s *fakeStore) UpdateLastTimestamp(_ context.Context, queryID, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.lastTS[queryID]; !ok || ts > cur {
		s.lastTS[queryID] = ts
	}
	return nil
}

func (s *fakeStore) ItemExists(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[id]
	return ok, nil
}

func (s *fakeStore) AddItem(ctx context.Context, item *models.Item, queryID int64) error {
	if s.addItemErr != nil {
		return s.addItemErr
	}
	s.mu.Lock()
	s.items[item.ID] = item
	s.mu.Unlock()
	return s.UpdateLastTimestamp(ctx, queryID, item.Timestamp)
}

func (s *fakeStore) Allowlist(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allowErr != nil {
		return nil, s.allowErr
	}
	out := append([]string(nil), s.allow...)
	sort.Strings(out)
	return out, nil
}

func (s *fakeStore) AddCountry(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.allow {
		if c == code {
			return nil
		}
	}
	s.allow = append(s.allow, code)
	return nil
}

func (s *fakeStore) RemoveCountry(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.allow {
		if c == code {
			s.allow = append(s.allow[:i], s.allow[i+1:]...)
			return nil
		}
	}
	return nil
}

type sentMessage struct {
	text, url, label string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, text, url, label string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMessage{text, url, label})
	return nil
}

type valuationCall struct {
	title string
	base  string
	match *fuzzy.Match
}

type fakeValuator struct {
	mu     sync.Mutex
	calls  []valuationCall
	result valuation.ValuationResult
}

func (v *fakeValuator) Evaluate(_ context.Context, title, _ string, price float64, currency, base string, match *fuzzy.Match) valuation.ValuationResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, valuationCall{title: title, base: base, match: match})
	r := v.result
	r.ItemPrice = price
	r.ItemCurrency = currency
	return r
}

type fakeCountries map[int64]string

func (f fakeCountries) UserCountry(_ context.Context, userID int64) string {
	if c, ok := f[userID]; ok {
		return c
	}
	return "XX"
}

type fakeJournal struct {
	mu      sync.Mutex
	written []*models.Notification
}

func (j *fakeJournal) WriteNotification(n *models.Notification) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.written = append(j.written, n)
	return nil
}

func (j *fakeJournal) Close() error { return nil }

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]*models.RawItem
	fail    map[string]bool
	calls   []string
}

func (s *fakeSearcher) Search(_ context.Context, queryURL string, _ int) ([]*models.RawItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, queryURL)
	if s.fail[queryURL] {
		return nil, errors.New("search failed")
	}
	return s.results[queryURL], nil
}

func lowConfidenceResult() valuation.ValuationResult {
	return valuation.ValuationResult{
		Normalization:   valuation.NormalizationResult{CanonicalQuery: "limoges", MatchQuality: valuation.QualityUnknown},
		SoldSummary:     valuation.MarketSummary{Source: valuation.SourceSold},
		ConfidenceLabel: valuation.ConfidenceLow,
		ConfidenceIcon:  valuation.IconLow,
	}
}
