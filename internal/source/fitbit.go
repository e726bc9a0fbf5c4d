package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/nadmax/fitsync/internal/health"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.fitbit.com"

type APIError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GET %s returned %d: %s", e.Path, e.StatusCode, e.Body)
}

type FitbitConfig struct {
	BaseURL     string
	AccessToken string
	// RequestsPerSecond paces outgoing calls across all goroutines; zero disables pacing.
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
	Logger            *log.Logger
}

type FitbitClient struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

func NewFitbitClient(cfg FitbitConfig) *FitbitClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := max(cfg.Burst, 1)
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &FitbitClient{
		baseURL: baseURL,
		token:   cfg.AccessToken,
		http:    httpClient,
		limiter: limiter,
		logger:  logger,
	}
}

type stepsResponse struct {
	Steps []struct {
		DateTime string      `json:"dateTime"`
		Value    json.Number `json:"value"`
	} `json:"activities-steps"`
}

func (c *FitbitClient) IntradaySteps(ctx context.Context, date health.Date) (int, error) {
	var resp stepsResponse
	path := fmt.Sprintf("/1/user/-/activities/steps/date/%s/1d/15min.json", date)
	if err := c.get(ctx, path, &resp); err != nil {
		return 0, err
	}

	if len(resp.Steps) == 0 {
		return 0, fmt.Errorf("steps response for %s has no activities-steps entry", date)
	}

	count, err := resp.Steps[0].Value.Int64()
	if err != nil {
		return 0, fmt.Errorf("invalid step count %q for %s: %w", resp.Steps[0].Value, date, err)
	}
	if count < 0 {
		return 0, fmt.Errorf("negative step count %d for %s", count, date)
	}

	return int(count), nil
}

type sleepResponse struct {
	Sleep []struct {
		Levels struct {
			Data health.RawSession `json:"data"`
		} `json:"levels"`
	} `json:"sleep"`
	Summary struct {
		TotalSleepRecords int `json:"totalSleepRecords"`
	} `json:"summary"`
}

func (c *FitbitClient) SleepSessions(ctx context.Context, date health.Date) ([]health.RawSession, error) {
	var resp sleepResponse
	path := fmt.Sprintf("/1.2/user/-/sleep/date/%s.json", date)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}

	if resp.Summary.TotalSleepRecords != len(resp.Sleep) {
		c.logger.Debug("sleep record count mismatch", "date", date, "summary", resp.Summary.TotalSleepRecords, "records", len(resp.Sleep))
	}

	// Records arrive newest first.
	sessions := make([]health.RawSession, 0, len(resp.Sleep))
	for i := len(resp.Sleep) - 1; i >= 0; i-- {
		data := resp.Sleep[i].Levels.Data
		if data == nil {
			data = health.RawSession{}
		}
		sessions = append(sessions, data)
	}

	return sessions, nil
}

func (c *FitbitClient) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %w", ErrTransient, path, err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", "path", path, "error", err)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: GET %s returned %d", ErrRateLimited, path, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %w", ErrTransient, apiError(resp, path))
	case resp.StatusCode >= 300:
		return apiError(resp, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func apiError(resp *http.Response, path string) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil && !errors.Is(err, io.EOF) {
		body = nil
	}
	return &APIError{StatusCode: resp.StatusCode, Path: path, Body: strings.TrimSpace(string(body))}
}
