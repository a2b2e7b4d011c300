package taskdesksdk

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

// Client is a minimal Taskdesk HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Task represents the API task model (partial).
type Task struct {
	ID           string  `json:"id"`
	RecordNumber string  `json:"record_number"`
	Title        string  `json:"title"`
	Status       string  `json:"status"`
	AssignedToID *string `json:"assigned_to_id,omitempty"`
	ReceiveID    *string `json:"receive_id,omitempty"`
	Version      int64   `json:"version"`
}

// Receive represents an intake-ledger entry.
type Receive struct {
	ID              string  `json:"id"`
	ReferenceNumber string  `json:"reference_number"`
	Subject         string  `json:"subject"`
	Status          string  `json:"status"`
	TaskCount       int     `json:"task_count"`
	ClosedByID      *string `json:"closed_by_id,omitempty"`
	ClosedAt        *string `json:"closed_at,omitempty"`
}

// TaskAction is one lifecycle log entry.
type TaskAction struct {
	ID          int64   `json:"id"`
	TaskID      string  `json:"task_id"`
	ActionType  string  `json:"action_type"`
	ActorID     string  `json:"actor_id"`
	ForwardedTo *string `json:"forwarded_to,omitempty"`
	Note        string  `json:"note,omitempty"`
	TS          string  `json:"ts"`
}

// Notification is one inbox entry.
type Notification struct {
	ID        string  `json:"id"`
	TaskID    *string `json:"task_id,omitempty"`
	Type      string  `json:"type"`
	Message   string  `json:"message"`
	Read      bool    `json:"read"`
	CreatedAt string  `json:"created_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateTask creates a task record.
func (c *Client) CreateTask(ctx context.Context, title string, receiveID string) (Task, error) {
	body := map[string]any{"title": title}
	if receiveID != "" {
		body["receive_id"] = receiveID
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "v0/tasks", body, &resp)
	return resp, err
}

// GetTask fetches a task by id.
func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "v0/tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ApplyEvent applies a lifecycle event (assign, forward, submit, acknowledge,
// reject, revert) to a task.
func (c *Client) ApplyEvent(ctx context.Context, taskID, event, assigneeID, note string) (Task, error) {
	body := map[string]any{"event": event}
	if assigneeID != "" {
		body["assignee_id"] = assigneeID
	}
	if note != "" {
		body["note"] = note
	}
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s/actions", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// TaskLog returns the lifecycle log for a task.
func (c *Client) TaskLog(ctx context.Context, taskID string) ([]TaskAction, error) {
	var resp struct {
		Items []TaskAction `json:"items"`
	}
	endpoint := fmt.Sprintf("v0/tasks/%s/log", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// CreateReceive records an incoming item.
func (c *Client) CreateReceive(ctx context.Context, subject, source string) (Receive, error) {
	body := map[string]any{"subject": subject}
	if source != "" {
		body["source"] = source
	}
	var resp Receive
	err := c.do(ctx, http.MethodPost, "v0/receives", body, &resp)
	return resp, err
}

// SetReceiveStatus opens or closes a receive.
func (c *Client) SetReceiveStatus(ctx context.Context, id, status string) (Receive, error) {
	var resp Receive
	endpoint := fmt.Sprintf("v0/receives/%s/status", url.PathEscape(id))
	err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// Notifications lists the caller's notifications.
func (c *Client) Notifications(ctx context.Context, unreadOnly bool) ([]Notification, error) {
	endpoint := "v0/notifications"
	if unreadOnly {
		endpoint += "?unread=true"
	}
	var resp struct {
		Items []Notification `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// MarkRead marks a notification as read.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	endpoint := "v0/notifications/" + url.PathEscape(id)
	return c.do(ctx, http.MethodPatch, endpoint, map[string]any{"read": true}, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
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
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
