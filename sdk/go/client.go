package controlroomsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Control Room HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Decision represents the API decision model (partial).
type Decision struct {
	ID            string  `json:"id"`
	RuleName      string  `json:"ruleName"`
	RouteKey      string  `json:"routeKey"`
	Title         string  `json:"title"`
	Category      string  `json:"category"`
	Priority      string  `json:"priority"`
	Status        string  `json:"status"`
	RevenueImpact float64 `json:"revenueImpact"`
	RASMImpact    float64 `json:"rasmImpact"`
	Version       int64   `json:"version"`
}

// Alert represents the API alert model (partial).
type Alert struct {
	ID                string   `json:"id"`
	Severity          string   `json:"severity"`
	Title             string   `json:"title"`
	LinkedDecisionIDs []string `json:"linkedDecisionIds"`
	Acknowledged      bool     `json:"acknowledged"`
	Dismissed         bool     `json:"dismissed"`
}

// AlertActionResult is the outcome of an alert action.
type AlertActionResult struct {
	Alert            Alert      `json:"alert"`
	Decisions        []Decision `json:"decisions"`
	RefreshRequested bool       `json:"refreshRequested"`
}

// LogEntry represents a decision log entry.
type LogEntry struct {
	ID            string   `json:"id"`
	Seq           int64    `json:"seq"`
	DecisionID    string   `json:"decisionId"`
	DecisionTitle string   `json:"decisionTitle"`
	Type          string   `json:"type"`
	Timestamp     string   `json:"timestamp"`
	Actor         string   `json:"actor"`
	RevenueImpact *float64 `json:"revenueImpact,omitempty"`
	Note          string   `json:"note,omitempty"`
}

// Summary is the pending decision aggregate.
type Summary struct {
	PendingCount   int     `json:"pendingCount"`
	PendingRevenue float64 `json:"pendingRevenue"`
	AvgPendingRASM float64 `json:"avgPendingRasm"`
	NetworkRASM    float64 `json:"networkRasm"`
}

// RefreshResult reports one refresh pass.
type RefreshResult struct {
	Epoch uint64 `json:"epoch"`
	Stale bool   `json:"stale"`
}

// APIError wraps non-2xx responses. Code and Message come from the error envelope when the
// body carries one.
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

// IsBlocked reports whether err is an approval refused because of a blocking constraint.
func IsBlocked(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == "blocked"
}

// PaginatedLog wraps log listings with a cursor.
type PaginatedLog struct {
	Items      []LogEntry `json:"items"`
	NextCursor string     `json:"next_cursor"`
}

// DecisionsPage wraps decision listings with an offset.
type DecisionsPage struct {
	Items      []Decision `json:"items"`
	NextOffset *int       `json:"next_offset"`
}

// ListDecisions returns decisions matching the given statuses, critical first.
func (c *Client) ListDecisions(ctx context.Context, limit, offset int, statuses ...string) (DecisionsPage, error) {
	q := url.Values{}
	if len(statuses) > 0 {
		q.Set("status", strings.Join(statuses, ","))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	var resp DecisionsPage
	err := c.do(ctx, http.MethodGet, withQuery("decisions", q), nil, &resp)
	return resp, err
}

// GetDecision fetches a decision by id.
func (c *Client) GetDecision(ctx context.Context, id string) (Decision, error) {
	var resp Decision
	err := c.do(ctx, http.MethodGet, "decisions/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Transition runs a lifecycle action (simulate, approve, reject, execute, complete,
// rollback). A zero version skips the optimistic concurrency check.
func (c *Client) Transition(ctx context.Context, id, action string, version int64, note string) (Decision, error) {
	body := map[string]any{}
	if version > 0 {
		body["version"] = version
	}
	if note != "" {
		body["note"] = note
	}
	var resp Decision
	endpoint := fmt.Sprintf("decisions/%s/%s", url.PathEscape(id), url.PathEscape(action))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Approve approves a pending decision.
func (c *Client) Approve(ctx context.Context, id string, version int64) (Decision, error) {
	return c.Transition(ctx, id, "approve", version, "")
}

// ListAlerts returns active alerts.
func (c *Client) ListAlerts(ctx context.Context, severity string) ([]Alert, error) {
	q := url.Values{}
	if severity != "" {
		q.Set("severity", severity)
	}
	var resp []Alert
	err := c.do(ctx, http.MethodGet, withQuery("alerts", q), nil, &resp)
	return resp, err
}

// ActOnAlert runs an alert action.
func (c *Client) ActOnAlert(ctx context.Context, id, action string) (AlertActionResult, error) {
	var resp AlertActionResult
	endpoint := fmt.Sprintf("alerts/%s/actions", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"type": action}, &resp)
	return resp, err
}

// Log returns recent log entries, newest first.
func (c *Client) Log(ctx context.Context, limit int) ([]LogEntry, error) {
	page, err := c.LogPage(ctx, "", limit, "")
	return page.Items, err
}

// LogPage returns a paginated log listing, optionally for one decision.
func (c *Client) LogPage(ctx context.Context, decisionID string, limit int, cursor string) (PaginatedLog, error) {
	q := url.Values{}
	if decisionID != "" {
		q.Set("decision_id", decisionID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp PaginatedLog
	err := c.do(ctx, http.MethodGet, withQuery("log", q), nil, &resp)
	return resp, err
}

// Summary returns pending totals and the network RASM position.
func (c *Client) Summary(ctx context.Context) (Summary, error) {
	var resp Summary
	err := c.do(ctx, http.MethodGet, "summary", nil, &resp)
	return resp, err
}

// Refresh triggers a refresh pass on the server.
func (c *Client) Refresh(ctx context.Context) (RefreshResult, error) {
	var resp RefreshResult
	err := c.do(ctx, http.MethodPost, "refresh", nil, &resp)
	return resp, err
}

// RecordActual records the realized impact of an executed decision.
func (c *Client) RecordActual(ctx context.Context, decisionID string, revenue, rasm float64) error {
	body := map[string]any{"revenueImpact": revenue, "rasmImpact": rasm}
	endpoint := fmt.Sprintf("outcomes/%s/actual", url.PathEscape(decisionID))
	return c.do(ctx, http.MethodPost, endpoint, body, nil)
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

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
