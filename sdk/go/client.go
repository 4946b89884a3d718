package inductionlogsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"inductionlog/internal/domain"
)

// Client is a minimal induction log HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	// ActorID and Role are sent as development identity headers when no
	// bearer token is set.
	ActorID    string
	Role       string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Log is a stored log with its document.
type Log struct {
	ID        string          `json:"id"`
	CreatedBy string          `json:"created_by"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
	Data      domain.FormData `json:"data"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	LogID      string         `json:"log_id"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
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

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// CreateLog creates a log. A nil data starts from the blank template.
func (c *Client) CreateLog(ctx context.Context, id string, data *domain.FormData) (Log, error) {
	body := map[string]any{}
	if id != "" {
		body["id"] = id
	}
	if data != nil {
		body["data"] = data
	}
	var resp Log
	err := c.do(ctx, http.MethodPost, "logs", body, &resp)
	return resp, err
}

// ListLogs returns log summaries. Admin only.
func (c *Client) ListLogs(ctx context.Context, inductee string) ([]domain.LogSummary, error) {
	endpoint := "logs"
	if inductee != "" {
		endpoint += "?inductee=" + url.QueryEscape(inductee)
	}
	var resp struct {
		Items []domain.LogSummary `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// Form returns the form configuration of a log as the caller's role sees it.
func (c *Client) Form(ctx context.Context, logID string) (domain.FormConfig, error) {
	var resp domain.FormConfig
	err := c.do(ctx, http.MethodGet, logPath(logID, ""), nil, &resp)
	return resp, err
}

// DeleteLog removes a log. Admin only.
func (c *Client) DeleteLog(ctx context.Context, logID string) error {
	return c.do(ctx, http.MethodDelete, logPath(logID, ""), nil, nil)
}

// SetField sets one field.
func (c *Client) SetField(ctx context.Context, logID string, ref domain.FieldRef, value string) (Log, error) {
	body := map[string]any{
		"section": ref.Section,
		"index":   ref.Index,
		"field":   ref.Field,
		"value":   value,
	}
	var resp Log
	err := c.do(ctx, http.MethodPatch, logPath(logID, "fields"), body, &resp)
	return resp, err
}

// AddEntry appends a blank row to a repeatable section.
func (c *Client) AddEntry(ctx context.Context, logID, section string) (Log, error) {
	var resp Log
	endpoint := logPath(logID, "sections/"+url.PathEscape(section)+"/entries")
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// RemoveEntry removes row index from a repeatable section.
func (c *Client) RemoveEntry(ctx context.Context, logID, section string, index int) (Log, error) {
	var resp Log
	endpoint := logPath(logID, "sections/"+url.PathEscape(section)+"/entries/"+strconv.Itoa(index))
	err := c.do(ctx, http.MethodDelete, endpoint, nil, &resp)
	return resp, err
}

// CanEdit asks the server whether role may edit section.field. An empty
// role means the caller's own.
func (c *Client) CanEdit(ctx context.Context, role, section, field string) (bool, error) {
	q := url.Values{}
	q.Set("section", section)
	q.Set("field", field)
	if role != "" {
		q.Set("role", role)
	}
	var resp struct {
		Allowed bool `json:"allowed"`
	}
	err := c.do(ctx, http.MethodGet, "policy/can-edit?"+q.Encode(), nil, &resp)
	return resp.Allowed, err
}

// Events returns recent events of a log.
func (c *Client) Events(ctx context.Context, logID string, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, logID, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, logID string, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := logPath(logID, "events")
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
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
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
		req.Header.Set("X-User-Role", c.Role)
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
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func logPath(logID, rest string) string {
	p := "logs/" + url.PathEscape(logID)
	if rest != "" {
		p += "/" + rest
	}
	return p
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
