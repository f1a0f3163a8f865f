package meridiansdk

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
)

// Client is a minimal Meridian HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	// ActorID is sent as X-Actor-Id when no bearer token is set. The server
	// only honours it when legacy actor headers are allowed.
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Workstream represents the API workstream model.
type Workstream struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	PlannedBudget  *float64 `json:"planned_budget,omitempty"`
	Phase          string   `json:"phase"`
	OwnerID        string   `json:"owner_id"`
	IsArchived     bool     `json:"is_archived"`
	LastActivityAt string   `json:"last_activity_at"`
}

// Profile holds the nine wizard answers keyed by field name.
type Profile map[string]string

// Score is the current RAG rating of a workstream.
type Score struct {
	WorkstreamID   string   `json:"workstream_id"`
	ScheduleScore  float64  `json:"schedule_score"`
	BudgetScore    *float64 `json:"budget_score"`
	BlockerScore   float64  `json:"blocker_score"`
	CompositeScore float64  `json:"composite_score"`
	RAGStatus      string   `json:"rag_status"`
	IsStale        bool     `json:"is_stale"`
	EvaluatedAt    string   `json:"evaluated_at"`
}

// Snapshot is one point of score history.
type Snapshot struct {
	ID             int64   `json:"id"`
	CompositeScore float64 `json:"composite_score"`
	RAGStatus      string  `json:"rag_status"`
	IsStale        bool    `json:"is_stale"`
	EvaluatedAt    string  `json:"evaluated_at"`
}

// Blocker represents an impediment raised against a workstream.
type Blocker struct {
	ID           string `json:"id"`
	WorkstreamID string `json:"workstream_id"`
	Description  string `json:"description"`
	DateRaised   string `json:"date_raised"`
	Status       string `json:"status"`
}

// PortfolioEntry pairs a workstream with its score, which is nil when unscored.
type PortfolioEntry struct {
	Workstream Workstream `json:"workstream"`
	Score      *Score     `json:"score,omitempty"`
}

// Portfolio is the red-first listing of active workstreams.
type Portfolio struct {
	Items   []PortfolioEntry `json:"items"`
	Summary map[string]int   `json:"summary"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateWorkstream creates a workstream. A nil profile leaves it unscored.
func (c *Client) CreateWorkstream(ctx context.Context, name, startDate, endDate string, plannedBudget *float64, profile Profile) (Workstream, error) {
	body := map[string]any{
		"name":       name,
		"start_date": startDate,
		"end_date":   endDate,
	}
	if plannedBudget != nil {
		body["planned_budget"] = *plannedBudget
	}
	if profile != nil {
		body["profile"] = profile
	}
	var resp Workstream
	err := c.do(ctx, http.MethodPost, "workstreams", body, &resp)
	return resp, err
}

// SetProfile configures the wizard answers of a workstream.
func (c *Client) SetProfile(ctx context.Context, workstreamID string, profile Profile) error {
	endpoint := fmt.Sprintf("workstreams/%s/profile", url.PathEscape(workstreamID))
	return c.do(ctx, http.MethodPut, endpoint, profile, nil)
}

// Score returns the current score of a workstream.
func (c *Client) Score(ctx context.Context, workstreamID string) (Score, error) {
	var resp Score
	endpoint := fmt.Sprintf("workstreams/%s/score", url.PathEscape(workstreamID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Recalculate forces a score evaluation now.
func (c *Client) Recalculate(ctx context.Context, workstreamID string) (Score, error) {
	var resp Score
	endpoint := fmt.Sprintf("workstreams/%s/score/recalculate", url.PathEscape(workstreamID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// History returns score snapshots oldest first. since is YYYY-MM-DD or empty.
func (c *Client) History(ctx context.Context, workstreamID, since string, limit int) ([]Snapshot, error) {
	q := url.Values{}
	if since != "" {
		q.Set("since", since)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	endpoint := fmt.Sprintf("workstreams/%s/history", url.PathEscape(workstreamID))
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Snapshot
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// RaiseBlocker records an open blocker. dateRaised may be empty for today.
func (c *Client) RaiseBlocker(ctx context.Context, workstreamID, description, dateRaised string) (Blocker, error) {
	body := map[string]any{"description": description}
	if dateRaised != "" {
		body["date_raised"] = dateRaised
	}
	var resp Blocker
	endpoint := fmt.Sprintf("workstreams/%s/blockers", url.PathEscape(workstreamID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// ResolveBlocker closes an open blocker.
func (c *Client) ResolveBlocker(ctx context.Context, blockerID string) (Blocker, error) {
	var resp Blocker
	endpoint := fmt.Sprintf("blockers/%s/resolve", url.PathEscape(blockerID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// Portfolio returns active workstreams red first.
func (c *Client) Portfolio(ctx context.Context) (Portfolio, error) {
	var resp Portfolio
	err := c.do(ctx, http.MethodGet, "portfolio", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
