// Package client talks to a running heromissions server over its HTTP API.
package client

import (
	"bytes"
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
	"github.com/meltforce/heromissions/internal/pose"
	"github.com/meltforce/heromissions/internal/session"
)

const maxAttempts = 3

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client drives missions on a heromissions server.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a client for the server at serverURL.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		backoff: time.Second,
	}
}

// Exercises lists the server's exercise catalog.
func (c *Client) Exercises(ctx context.Context) ([]catalog.Exercise, error) {
	var out []catalog.Exercise
	if err := c.do(ctx, http.MethodGet, "/api/v1/exercises", nil, &out); err != nil {
		return nil, fmt.Errorf("listing exercises: %w", err)
	}
	return out, nil
}

// StartMission begins a mission for exercise.
func (c *Client) StartMission(ctx context.Context, exercise string) (*session.Status, error) {
	var st session.Status
	body := map[string]string{"exercise": exercise}
	if err := c.do(ctx, http.MethodPost, "/api/v1/missions", body, &st); err != nil {
		return nil, fmt.Errorf("starting mission: %w", err)
	}
	return &st, nil
}

// Status fetches the live state of a mission.
func (c *Client) Status(ctx context.Context, id uuid.UUID) (*session.Status, error) {
	var st session.Status
	if err := c.do(ctx, http.MethodGet, "/api/v1/missions/"+url.PathEscape(id.String()), nil, &st); err != nil {
		return nil, fmt.Errorf("mission status: %w", err)
	}
	return &st, nil
}

// Classify submits one per-frame classification.
func (c *Client) Classify(ctx context.Context, id uuid.UUID, label string, confidence float64) (*session.Step, error) {
	var step session.Step
	body := map[string]any{"label": label, "confidence": confidence}
	if err := c.do(ctx, http.MethodPost, "/api/v1/missions/"+id.String()+"/classifications", body, &step); err != nil {
		return nil, fmt.Errorf("classifying: %w", err)
	}
	return &step, nil
}

// SubmitLandmarks submits one frame of pose landmarks for server-side classification.
func (c *Client) SubmitLandmarks(ctx context.Context, id uuid.UUID, lms []pose.Landmark) (*session.Step, error) {
	var step session.Step
	body := map[string]any{"landmarks": lms}
	if err := c.do(ctx, http.MethodPost, "/api/v1/missions/"+id.String()+"/landmarks", body, &step); err != nil {
		return nil, fmt.Errorf("submitting landmarks: %w", err)
	}
	return &step, nil
}

// EndMission ends a mission and returns its recorded result.
func (c *Client) EndMission(ctx context.Context, id uuid.UUID) (*models.MissionResult, error) {
	var res models.MissionResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/missions/"+id.String()+"/end", nil, &res); err != nil {
		return nil, fmt.Errorf("ending mission: %w", err)
	}
	return &res, nil
}

// do sends one request and decodes the JSON response into out. GET requests
// are retried up to maxAttempts times with exponential backoff on transport
// errors and 5xx responses; mission writes are not, since the server counts
// every classification it receives.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = maxAttempts
	}

	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff << uint(attempt-1)):
			}
		}

		retry, err := c.send(ctx, method, path, data, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
	}
	if attempts > 1 {
		return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
	}
	return lastErr
}

func (c *Client) send(ctx context.Context, method, path string, data []byte, out any) (retry bool, err error) {
	var rdr io.Reader
	if data != nil {
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, rdr)
	if err != nil {
		return false, err
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode >= 500, decodeError(resp)
	}
	if out == nil {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decoding response: %w", err)
	}
	return false, nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var e struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
