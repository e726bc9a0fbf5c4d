// Package api exposes fetch batches and month views over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nadmax/fitsync/internal/fetch"
	"github.com/nadmax/fitsync/internal/health"
	"github.com/nadmax/fitsync/internal/httputil"
	"github.com/nadmax/fitsync/internal/report"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxTrackedBatches bounds how many finished batches stay queryable.
const maxTrackedBatches = 100

type Fetcher interface {
	Submit(ctx context.Context, r health.DateRange) (*fetch.Batch, error)
}

type MonthViewBuilder interface {
	BuildMonthView(ctx context.Context, year int, month time.Month) (*report.MonthView, error)
}

type API struct {
	fetcher  Fetcher
	reports  MonthViewBuilder
	renderer report.Renderer
	logger   *log.Logger
	mux      *http.ServeMux

	mu      sync.Mutex
	batches map[string]*fetch.Batch
	order   []string
}

type FetchRequest struct {
	Start health.Date `json:"start"`
	End   health.Date `json:"end"`
	Async bool        `json:"async"`
}

type BatchResponse struct {
	ID       string           `json:"id"`
	Range    health.DateRange `json:"range"`
	Status   string           `json:"status"`
	Finished int              `json:"finished"`
	Total    int              `json:"total"`
	Tasks    []fetch.Task     `json:"tasks"`
	Error    string           `json:"error,omitempty"`
	RetryAt  *time.Time       `json:"retry_at,omitempty"`
}

func NewAPI(fetcher Fetcher, reports MonthViewBuilder, logger *log.Logger) *API {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	api := &API{
		fetcher:  fetcher,
		reports:  reports,
		renderer: report.JSONRenderer{},
		logger:   logger,
		mux:      http.NewServeMux(),
		batches:  make(map[string]*fetch.Batch),
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	a.mux.HandleFunc("POST /api/fetch", a.createBatch)
	a.mux.HandleFunc("GET /api/batches/{id}", a.getBatch)
	a.mux.HandleFunc("GET /api/months/{year}/{month}", a.getMonth)
	a.mux.Handle("GET /metrics", promhttp.Handler())
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *API) createBatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteJSONError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	defer func() {
		if err := r.Body.Close(); err != nil {
			a.logger.Warn("failed to close request body", "error", err)
		}
	}()

	var req FetchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteJSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	batch, err := a.fetcher.Submit(r.Context(), health.NewDateRange(req.Start, req.End))
	if err != nil {
		var vErr *health.ValidationError
		if errors.As(err, &vErr) {
			httputil.WriteJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	a.track(batch)

	if req.Async {
		w.Header().Set("Location", "/api/batches/"+batch.ID)
		httputil.WriteJSON(w, http.StatusAccepted, batchResponse(batch))
		return
	}

	err = batch.Wait()
	if err == nil {
		httputil.WriteJSON(w, http.StatusOK, batchResponse(batch))
		return
	}

	status := http.StatusBadGateway
	var rateLimited *health.RateLimitedError
	if errors.As(err, &rateLimited) {
		status = http.StatusTooManyRequests
		w.Header().Set("Retry-After", strconv.Itoa(int(rateLimited.Cooldown.Seconds())))
	}
	httputil.WriteJSON(w, status, batchResponse(batch))
}

func (a *API) getBatch(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	batch, ok := a.batches[r.PathValue("id")]
	a.mu.Unlock()

	if !ok {
		httputil.WriteJSONError(w, "Batch not found", http.StatusNotFound)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, batchResponse(batch))
}

func (a *API) getMonth(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		httputil.WriteJSONError(w, "Invalid year", http.StatusBadRequest)
		return
	}

	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil {
		httputil.WriteJSONError(w, "Invalid month", http.StatusBadRequest)
		return
	}

	view, err := a.reports.BuildMonthView(r.Context(), year, time.Month(month))
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), monthErrorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := a.renderer.Render(w, view); err != nil {
		a.logger.Error("failed to render month view", "year", year, "month", month, "error", err)
	}
}

func monthErrorStatus(err error) int {
	var (
		vErr *health.ValidationError
		nErr *health.NormalizationError
	)
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.Is(err, health.ErrNoDataSource):
		return http.StatusServiceUnavailable
	case errors.Is(err, health.ErrNoRows):
		return http.StatusNotFound
	case errors.As(err, &nErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) track(batch *fetch.Batch) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.batches[batch.ID] = batch
	a.order = append(a.order, batch.ID)
	if len(a.order) > maxTrackedBatches {
		delete(a.batches, a.order[0])
		a.order = a.order[1:]
	}
}

func batchResponse(b *fetch.Batch) BatchResponse {
	finished, total := b.Progress()
	resp := BatchResponse{
		ID:       b.ID,
		Range:    b.Range,
		Status:   "running",
		Finished: finished,
		Total:    total,
		Tasks:    b.Tasks(),
	}

	select {
	case <-b.Done():
	default:
		return resp
	}

	err := b.Wait()
	if err == nil {
		resp.Status = "succeeded"
		return resp
	}

	resp.Status = "failed"
	resp.Error = err.Error()
	var rateLimited *health.RateLimitedError
	if errors.As(err, &rateLimited) {
		resp.RetryAt = &rateLimited.RetryAt
	}
	return resp
}
