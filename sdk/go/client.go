package erpsdk

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

// Client is a minimal TBO ERP HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	// ActorID is sent as X-Actor-Id when no token is set; servers only honor it
	// when started with --legacy-actor-header.
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

// Entity represents the API entity model (partial).
type Entity struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Status      string         `json:"status"`
	Title       string         `json:"title"`
	ProjectID   string         `json:"project_id,omitempty"`
	OwnerID     string         `json:"owner_id,omitempty"`
	Phase       string         `json:"phase,omitempty"`
	PlaybookKey string         `json:"playbook_key,omitempty"`
	DueDate     string         `json:"due_date,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
	Revision    int64          `json:"revision"`
}

type PlaybookResult struct {
	ProjectID        string   `json:"project_id"`
	PlaybookKey      string   `json:"playbook_key"`
	TaskCount        int      `json:"task_count"`
	DeliverableCount int      `json:"deliverable_count"`
	TaskIDs          []string `json:"task_ids"`
	DeliverableIDs   []string `json:"deliverable_ids"`
}

type Version struct {
	DeliverableID string `json:"deliverable_id"`
	Code          string `json:"code"`
	Status        string `json:"status"`
	Description   string `json:"description,omitempty"`
}

type Timer struct {
	UserID      string `json:"user_id"`
	ProjectID   string `json:"project_id"`
	TaskID      string `json:"task_id,omitempty"`
	StartedAt   string `json:"started_at"`
	Description string `json:"description,omitempty"`
}

type TimeEntry struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	ProjectID       string `json:"project_id"`
	TaskID          string `json:"task_id,omitempty"`
	Date            string `json:"date"`
	DurationMinutes int    `json:"duration_minutes"`
	Description     string `json:"description,omitempty"`
	Source          string `json:"source"`
}

// Timesheet is the weekly rollup (entries omitted).
type Timesheet struct {
	UserID    string         `json:"user_id"`
	WeekStart string         `json:"week_start"`
	WeekEnd   string         `json:"week_end"`
	DayTotals map[string]int `json:"day_totals"`
	WeekTotal int            `json:"week_total"`
}

type CostMetrics struct {
	ProjectID      string  `json:"project_id"`
	TrackedMinutes int     `json:"tracked_minutes"`
	TrackedCost    float64 `json:"tracked_cost"`
	PlannedCost    float64 `json:"planned_cost"`
	Revenue        float64 `json:"revenue"`
	MarginReal     float64 `json:"margin_real"`
	IsOverBudget   bool    `json:"is_over_budget"`
}

// Event represents an activity entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id"`
	EntityID   string `json:"entity_id"`
	EntityKind string `json:"entity_kind"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses. Code is the error envelope's code when
// the body could be decoded.
type APIError struct {
	StatusCode int
	Code       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s body=%s", e.StatusCode, e.Code, e.Body)
}

// CreateEntity creates an entity. fields may be nil.
func (c *Client) CreateEntity(ctx context.Context, entityType, title, projectID string, fields map[string]any) (Entity, error) {
	body := map[string]any{
		"type":  entityType,
		"title": title,
	}
	if projectID != "" {
		body["project_id"] = projectID
	}
	if len(fields) > 0 {
		body["fields"] = fields
	}
	var resp Entity
	err := c.do(ctx, http.MethodPost, "entities", body, &resp)
	return resp, err
}

func (c *Client) GetEntity(ctx context.Context, id string) (Entity, error) {
	var resp Entity
	err := c.do(ctx, http.MethodGet, "entities/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Transition moves an entity to status to.
func (c *Client) Transition(ctx context.Context, id, to string) (Entity, error) {
	var resp Entity
	err := c.do(ctx, http.MethodPost, "entities/"+url.PathEscape(id)+"/transition", map[string]any{"to": to}, &resp)
	return resp, err
}

func (c *Client) ApplyPlaybook(ctx context.Context, projectID, playbook string) (PlaybookResult, error) {
	var resp PlaybookResult
	err := c.do(ctx, http.MethodPost, "projects/"+url.PathEscape(projectID)+"/playbook", map[string]any{"playbook": playbook}, &resp)
	return resp, err
}

func (c *Client) SubmitVersion(ctx context.Context, deliverableID, description string) (Version, error) {
	var resp Version
	err := c.do(ctx, http.MethodPost, "deliverables/"+url.PathEscape(deliverableID)+"/versions", map[string]any{"description": description}, &resp)
	return resp, err
}

func (c *Client) ApproveVersion(ctx context.Context, deliverableID, code string) (Entity, error) {
	var resp Entity
	endpoint := fmt.Sprintf("deliverables/%s/versions/%s/approve", url.PathEscape(deliverableID), url.PathEscape(code))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) RequestRevision(ctx context.Context, deliverableID, code, reason string) (Entity, error) {
	var resp Entity
	endpoint := fmt.Sprintf("deliverables/%s/versions/%s/revision", url.PathEscape(deliverableID), url.PathEscape(code))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"reason": reason}, &resp)
	return resp, err
}

// StartTimer starts the caller's timer on a project.
func (c *Client) StartTimer(ctx context.Context, projectID, taskID string) (Timer, error) {
	body := map[string]any{"project_id": projectID}
	if taskID != "" {
		body["task_id"] = taskID
	}
	var resp Timer
	err := c.do(ctx, http.MethodPost, "timers", body, &resp)
	return resp, err
}

// StopTimer stops the caller's timer and returns the recorded entry.
func (c *Client) StopTimer(ctx context.Context) (TimeEntry, error) {
	var resp TimeEntry
	err := c.do(ctx, http.MethodPost, "timers/stop", map[string]any{}, &resp)
	return resp, err
}

func (c *Client) AddEntry(ctx context.Context, projectID, date string, minutes int, description string) (TimeEntry, error) {
	body := map[string]any{
		"project_id":       projectID,
		"date":             date,
		"duration_minutes": minutes,
		"description":      description,
	}
	var resp TimeEntry
	err := c.do(ctx, http.MethodPost, "time-entries", body, &resp)
	return resp, err
}

// Timesheet returns a user's week; week is any date in it, empty for the current week.
func (c *Client) Timesheet(ctx context.Context, userID, week string) (Timesheet, error) {
	endpoint := "users/" + url.PathEscape(userID) + "/timesheet"
	if week != "" {
		endpoint += "?week=" + url.QueryEscape(week)
	}
	var resp Timesheet
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) ProjectCosts(ctx context.Context, projectID string) (CostMetrics, error) {
	var resp CostMetrics
	err := c.do(ctx, http.MethodGet, "projects/"+url.PathEscape(projectID)+"/costs", nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
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
				Code string `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
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
