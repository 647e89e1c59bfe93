// Package analytics talks to the remote analytics API and assembles domain snapshots from it.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"controlroom/internal/snapshot"
)

// Client is a minimal analytics HTTP API client.
type Client struct {
	BaseURL    string
	APIKey     string
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

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("analytics api error: status=%d body=%s", e.StatusCode, e.Body)
}

// OptimizationResult is the summary returned by an optimizer run.
type OptimizationResult struct {
	RunID         string   `json:"run_id"`
	Objective     string   `json:"objective"`
	Status        string   `json:"status"`
	ProjectedRASM *float64 `json:"projected_rasm"`
	Summary       string   `json:"summary"`
}

func (c *Client) MarketIntelligence(ctx context.Context, limit int) ([]snapshot.Market, error) {
	endpoint := "api/intelligence/markets"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []snapshot.Market
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) EquipmentRecommendations(ctx context.Context) ([]snapshot.EquipmentRecommendation, error) {
	var resp []snapshot.EquipmentRecommendation
	err := c.do(ctx, http.MethodGet, "api/intelligence/equipment-recommendations", nil, &resp)
	return resp, err
}

func (c *Client) ExecutiveInsights(ctx context.Context) ([]snapshot.Insight, error) {
	var resp []snapshot.Insight
	err := c.do(ctx, http.MethodGet, "api/intelligence/insights", nil, &resp)
	return resp, err
}

func (c *Client) NetworkStats(ctx context.Context) (*snapshot.NetworkStats, error) {
	var resp snapshot.NetworkStats
	if err := c.do(ctx, http.MethodGet, "api/network/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) NetworkPosition(ctx context.Context) (*snapshot.NetworkPosition, error) {
	var resp snapshot.NetworkPosition
	if err := c.do(ctx, http.MethodGet, "api/intelligence/position", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) HubSummary(ctx context.Context) (map[string]snapshot.Hub, error) {
	var resp map[string]snapshot.Hub
	err := c.do(ctx, http.MethodGet, "api/network/hubs", nil, &resp)
	return resp, err
}

func (c *Client) FleetSummary(ctx context.Context) (*snapshot.FleetSummary, error) {
	var resp snapshot.FleetSummary
	if err := c.do(ctx, http.MethodGet, "api/fleet/summary", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) MaintenanceDue(ctx context.Context) ([]snapshot.MaintenanceDue, error) {
	var resp []snapshot.MaintenanceDue
	err := c.do(ctx, http.MethodGet, "api/fleet/maintenance-due", nil, &resp)
	return resp, err
}

func (c *Client) FleetAlignment(ctx context.Context) (*snapshot.FleetAlignment, error) {
	var resp snapshot.FleetAlignment
	if err := c.do(ctx, http.MethodGet, "api/intelligence/fleet-alignment", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CrewSummary(ctx context.Context) (*snapshot.CrewSummary, error) {
	var resp snapshot.CrewSummary
	if err := c.do(ctx, http.MethodGet, "api/crew/summary", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) TrainingDue(ctx context.Context) ([]snapshot.TrainingDue, error) {
	var resp []snapshot.TrainingDue
	err := c.do(ctx, http.MethodGet, "api/crew/training-due", nil, &resp)
	return resp, err
}

func (c *Client) CrewAlignment(ctx context.Context) (*snapshot.CrewAlignment, error) {
	var resp snapshot.CrewAlignment
	if err := c.do(ctx, http.MethodGet, "api/intelligence/crew-alignment", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) MROSummary(ctx context.Context) (*snapshot.MROSummary, error) {
	var resp snapshot.MROSummary
	if err := c.do(ctx, http.MethodGet, "api/mro/summary", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ScheduledMaintenance(ctx context.Context) ([]snapshot.ScheduledMaintenance, error) {
	var resp []snapshot.ScheduledMaintenance
	err := c.do(ctx, http.MethodGet, "api/mro/scheduled", nil, &resp)
	return resp, err
}

func (c *Client) MROImpact(ctx context.Context) (*snapshot.MROImpact, error) {
	var resp snapshot.MROImpact
	if err := c.do(ctx, http.MethodGet, "api/intelligence/mro-impact", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) TrackedOutcomes(ctx context.Context) ([]snapshot.ActualOutcome, error) {
	var resp []snapshot.ActualOutcome
	err := c.do(ctx, http.MethodGet, "api/outcomes/tracked", nil, &resp)
	return resp, err
}

func (c *Client) OptimizerStatus(ctx context.Context) (*snapshot.OptimizerStatus, error) {
	var resp snapshot.OptimizerStatus
	if err := c.do(ctx, http.MethodGet, "api/optimizer/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunNetworkOptimization asks the optimizer for a run. Only the summary is consumed.
func (c *Client) RunNetworkOptimization(ctx context.Context, objective string) (OptimizationResult, error) {
	var resp OptimizationResult
	err := c.do(ctx, http.MethodPost, "api/optimizer/run", map[string]any{"objective": objective}, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: c.Timeout}
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
	if c.APIKey != "" {
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s: %w", endpoint, err)
		}
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
