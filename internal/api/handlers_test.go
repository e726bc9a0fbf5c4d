package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nadmax/fitsync/internal/fetch"
	"github.com/nadmax/fitsync/internal/health"
	"github.com/nadmax/fitsync/internal/report"
	"github.com/nadmax/fitsync/internal/repository"
	"github.com/nadmax/fitsync/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	mu       sync.Mutex
	stepErrs map[string]error
	release  chan struct{}
}

func (s *stubSource) IntradaySteps(ctx context.Context, date health.Date) (int, error) {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.stepErrs[date.String()]; err != nil {
		return 0, err
	}
	return 500 * date.Day, nil
}

func (s *stubSource) SleepSessions(_ context.Context, date health.Date) ([]health.RawSession, error) {
	return []health.RawSession{
		{{DateTime: date.String() + "T01:00:00.000", Level: "deep", Seconds: 1800}},
	}, nil
}

func setupTestAPI(t *testing.T) (*API, *stubSource, *repository.MockStore) {
	t.Helper()

	src := &stubSource{stepErrs: make(map[string]error)}
	store := repository.NewMockStore()
	orchestrator := fetch.NewOrchestrator(src, store, fetch.Config{Timeout: 5 * time.Second})

	return NewAPI(orchestrator, report.NewService(store), nil), src, store
}

func postFetch(t *testing.T, api *API, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/fetch", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	api.ServeHTTP(w, req)
	return w
}

func decodeBatch(t *testing.T, w *httptest.ResponseRecorder) BatchResponse {
	t.Helper()

	var resp BatchResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestCreateBatch(t *testing.T) {
	api, _, store := setupTestAPI(t)

	w := postFetch(t, api, `{"start":"2024-05-01","end":"2024-05-03"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeBatch(t, w)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "succeeded", resp.Status)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 3, resp.Finished)
	require.Len(t, resp.Tasks, 3)
	assert.Equal(t, "2024-05-01", resp.Tasks[0].Date.String())

	count, ok := store.StepCount(health.NewDate(2024, time.May, 2))
	assert.True(t, ok)
	assert.Equal(t, 1000, count)
}

func TestCreateBatch_InvalidRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "invalid json", body: `{"start":`, wantErr: "Invalid JSON"},
		{name: "invalid date", body: `{"start":"2024-13-01","end":"2024-05-03"}`, wantErr: "Invalid JSON"},
		{name: "missing dates", body: `{}`, wantErr: "start and end dates are required"},
		{name: "too many days", body: `{"start":"2024-01-01","end":"2024-12-31"}`, wantErr: "366 days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, _, _ := setupTestAPI(t)

			w := postFetch(t, api, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantErr)
		})
	}
}

func TestCreateBatch_RateLimited(t *testing.T) {
	api, src, store := setupTestAPI(t)
	src.stepErrs["2024-05-02"] = fmt.Errorf("%w: 429", source.ErrRateLimited)

	w := postFetch(t, api, `{"start":"2024-05-01","end":"2024-05-03"}`)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))

	resp := decodeBatch(t, w)
	assert.Equal(t, "failed", resp.Status)
	assert.Contains(t, resp.Error, "2024-05-02")
	assert.NotNil(t, resp.RetryAt)

	assert.True(t, store.HasSleep(health.NewDate(2024, time.May, 1)))
	assert.True(t, store.HasSleep(health.NewDate(2024, time.May, 3)))
	assert.False(t, store.HasSleep(health.NewDate(2024, time.May, 2)))
}

func TestCreateBatch_FetchFailed(t *testing.T) {
	api, src, _ := setupTestAPI(t)
	src.stepErrs["2024-05-01"] = fmt.Errorf("%w: 503", source.ErrTransient)

	w := postFetch(t, api, `{"start":"2024-05-01","end":"2024-05-01"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Empty(t, w.Header().Get("Retry-After"))
	resp := decodeBatch(t, w)
	assert.Contains(t, resp.Error, "steps data for 2024-05-01 could not be fetched")
}

func TestCreateBatch_AsyncThenPoll(t *testing.T) {
	api, src, _ := setupTestAPI(t)
	src.release = make(chan struct{})

	w := postFetch(t, api, `{"start":"2024-05-01","end":"2024-05-02","async":true}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	resp := decodeBatch(t, w)
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, "/api/batches/"+resp.ID, w.Header().Get("Location"))

	close(src.release)

	assert.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/batches/"+resp.ID, nil)
		rec := httptest.NewRecorder()
		api.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return false
		}
		var polled BatchResponse
		if err := json.NewDecoder(rec.Body).Decode(&polled); err != nil {
			return false
		}
		return polled.Status == "succeeded"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestGetBatch_NotFound(t *testing.T) {
	api, _, _ := setupTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/batches/nonexistent", nil)
	w := httptest.NewRecorder()
	api.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Batch not found"}`, w.Body.String())
}

func TestTrack_BoundsHistory(t *testing.T) {
	api, _, _ := setupTestAPI(t)

	var first string
	for i := range maxTrackedBatches + 5 {
		b, err := api.fetcher.Submit(context.Background(), health.NewDateRange(
			health.NewDate(2024, time.May, 1), health.NewDate(2024, time.May, 1)))
		require.NoError(t, err)
		require.NoError(t, b.Wait())
		if i == 0 {
			first = b.ID
		}
		api.track(b)
	}

	assert.Len(t, api.batches, maxTrackedBatches)
	assert.NotContains(t, api.batches, first)
}

func TestGetMonth(t *testing.T) {
	api, _, _ := setupTestAPI(t)

	w := postFetch(t, api, `{"start":"2024-05-01","end":"2024-05-03"}`)
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/months/2024/5", nil)
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var view report.MonthView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, 2024, view.Year)
	assert.Equal(t, time.May, view.Month)
	assert.Equal(t, 31, view.Days)
	assert.Len(t, view.Steps, 3)
	assert.Len(t, view.Sleep, 3)
}

func TestGetMonth_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		setup  func(store *repository.MockStore)
		status int
	}{
		{name: "invalid year", path: "/api/months/year/5", status: http.StatusBadRequest},
		{name: "invalid month", path: "/api/months/2024/may", status: http.StatusBadRequest},
		{name: "month out of range", path: "/api/months/2024/13", status: http.StatusBadRequest},
		{name: "no rows", path: "/api/months/2024/5", status: http.StatusNotFound},
		{
			name: "no data source",
			path: "/api/months/2024/5",
			setup: func(store *repository.MockStore) {
				store.SleepInRangeError = health.ErrNoDataSource
			},
			status: http.StatusServiceUnavailable,
		},
		{
			name: "malformed row",
			path: "/api/months/2024/5",
			setup: func(store *repository.MockStore) {
				store.Sleep["2024-05-04"] = "{"
			},
			status: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, _, store := setupTestAPI(t)
			if tt.setup != nil {
				tt.setup(store)
			}

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			api.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	api, _, _ := setupTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/fetch", nil)
	w := httptest.NewRecorder()
	api.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	api, _, _ := setupTestAPI(t)
	postFetch(t, api, `{"start":"2024-05-01","end":"2024-05-01"}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	api.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fitsync_fetch_tasks_total")
}
