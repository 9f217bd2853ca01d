package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/heromissions/internal/catalog"
	"github.com/meltforce/heromissions/internal/models"
	"github.com/meltforce/heromissions/internal/storage"
)

// HTTPClient implements DataSource and ExerciseSource by calling the
// HeroMissions REST API. Used for remote MCP mode where the binary runs
// locally (stdio) but data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies both sources.
var (
	_ DataSource     = (*HTTPClient)(nil)
	_ ExerciseSource = (*HTTPClient)(nil)
)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("httpclient: %s: %w", path, storage.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

func (c *HTTPClient) QueryMissions(ctx context.Context, start, end time.Time, _ int, exercise string) ([]models.MissionResult, error) {
	params := url.Values{}
	params.Set("start", start.Format(time.RFC3339))
	params.Set("end", end.Format(time.RFC3339))
	if exercise != "" {
		params.Set("exercise", exercise)
	}

	body, err := c.get(ctx, "/api/v1/history", params)
	if err != nil {
		return nil, err
	}

	var missions []models.MissionResult
	if err := json.Unmarshal(body, &missions); err != nil {
		return nil, fmt.Errorf("httpclient: decode history: %w", err)
	}
	return missions, nil
}

func (c *HTTPClient) GetMission(ctx context.Context, id uuid.UUID, _ int) (*models.MissionResult, error) {
	body, err := c.get(ctx, "/api/v1/history/"+id.String(), nil)
	if err != nil {
		return nil, err
	}

	var m models.MissionResult
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("httpclient: decode mission: %w", err)
	}
	return &m, nil
}

func (c *HTTPClient) GetMissionStats(ctx context.Context, _ int) (*storage.MissionStats, error) {
	body, err := c.get(ctx, "/api/v1/stats", nil)
	if err != nil {
		return nil, err
	}

	var stats storage.MissionStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("httpclient: decode stats: %w", err)
	}
	return &stats, nil
}

func (c *HTTPClient) Exercises(ctx context.Context) ([]*catalog.Exercise, error) {
	body, err := c.get(ctx, "/api/v1/exercises", nil)
	if err != nil {
		return nil, err
	}

	var exercises []*catalog.Exercise
	if err := json.Unmarshal(body, &exercises); err != nil {
		return nil, fmt.Errorf("httpclient: decode exercises: %w", err)
	}
	return exercises, nil
}
