package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vinted-monitor/models"
)

type fakeDB struct{ err error }

func (f fakeDB) Ping(context.Context) error { return f.err }

type fakeReports struct{ report *models.CycleReport }

func (f fakeReports) Latest() *models.CycleReport { return f.report }

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, s, http.MethodGet, path)
}

func TestHealthz(t *testing.T) {
	s := New(":0", fakeDB{}, fakeReports{}, nil)
	w := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestHealthzDatabaseDown(t *testing.T) {
	s := New(":0", fakeDB{err: errors.New("connection refused")}, fakeReports{}, nil)
	w := get(t, s, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "db: not ok", w.Body.String())
}

func TestStatsBeforeFirstCycle(t *testing.T) {
	s := New(":0", fakeDB{}, fakeReports{}, nil)
	w := get(t, s, "/stats")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestStatsReturnsLatestReport(t *testing.T) {
	report := &models.CycleReport{
		StartedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Queries:      3,
		Notified:     2,
		BestDeal:     "Vase",
		BestProfit:   20.01,
		ByConfidence: map[string]int{"Low": 2},
	}
	s := New(":0", fakeDB{}, fakeReports{report: report}, nil)

	w := get(t, s, "/stats")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got models.CycleReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 3, got.Queries)
	assert.Equal(t, 2, got.Notified)
	assert.Equal(t, "Vase", got.BestDeal)
	assert.Equal(t, map[string]int{"Low": 2}, got.ByConfidence)
	assert.True(t, report.StartedAt.Equal(got.StartedAt))
}

func TestUnknownRoute(t *testing.T) {
	s := New(":0", fakeDB{}, fakeReports{}, nil)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/nope").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s, http.MethodPost, "/healthz").Code)
}
