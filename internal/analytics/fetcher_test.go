package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlroom/internal/domain"
	"controlroom/internal/snapshot"
)

func newAnalyticsServer(t *testing.T, handlers map[string]any, slow map[string]bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slow[r.URL.Path] {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		body, ok := handlers[r.URL.Path]
		if !ok {
			http.Error(w, `{"detail":"No data loaded"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func healthByFeed(s *snapshot.Snapshot) map[string]domain.DataHealthStatus {
	out := map[string]domain.DataHealthStatus{}
	for _, h := range s.Health {
		out[h.FeedName] = h
	}
	return out
}

func TestFetchFailsSoftPerFeed(t *testing.T) {
	srv := newAnalyticsServer(t, map[string]any{
		"/api/intelligence/markets": []map[string]any{
			{"market_key": "DTW-LAS", "origin": "DTW", "destination": "LAS", "nk_passengers": 73000, "nk_market_share": 64.0, "nk_avg_fare": 140.0, "fare_advantage": 4.2, "distance": 1749},
			{"market_key": "FLL-BOS", "origin": "FLL", "destination": "BOS", "nk_passengers": 36500, "nk_market_share": 30.0, "nk_avg_fare": nil, "fare_advantage": -8, "distance": 1237},
		},
		"/api/fleet/summary": map[string]any{"total_aircraft": 10, "by_type": map[string]int{"A321neo": 4, "A320neo": 6}},
		"/api/intelligence/mro-impact": map[string]any{
			"upcoming_events": []map[string]any{{"aircraft": "N901NK", "base": "DTW", "downtime_days": 21}},
			"network_impact":  []map[string]any{{"base": "DTW", "aircraft": "N901NK", "severity": "high"}, {"base": "LAS", "severity": "odd"}},
		},
	}, map[string]bool{"/api/crew/summary": true})

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := Fetcher{
		Source:  New(srv.URL),
		Timeout: 200 * time.Millisecond,
		Now:     func() time.Time { return fixed },
	}
	snap := f.Fetch(context.Background())

	require.Len(t, snap.Health, len(snapshot.Feeds))
	health := healthByFeed(snap)

	require.Len(t, snap.Markets, 2)
	assert.InDelta(t, 0.64, snap.Markets[0].Share, 1e-9)
	assert.Nil(t, snap.Markets[1].AvgFare)
	assert.Equal(t, domain.FeedLive, health[snapshot.FeedMarkets].Status)

	require.NotNil(t, snap.Fleet)
	assert.Equal(t, 4, snap.Fleet.ByType["A321neo"])

	require.NotNil(t, snap.MROImpact)
	assert.Len(t, snap.MROImpact.NetworkImpact, 1)
	assert.Equal(t, 1, health[snapshot.FeedMROImpact].OutOfBoundsCount)

	assert.Equal(t, domain.FeedDisconnected, health[snapshot.FeedCrew].Status)
	assert.NotEmpty(t, health[snapshot.FeedCrew].ErrorMessage)
	assert.Nil(t, snap.Crew)

	assert.Equal(t, domain.FeedDisconnected, health[snapshot.FeedTrainingDue].Status)
	assert.Contains(t, health[snapshot.FeedTrainingDue].ErrorMessage, "status=400")
	assert.False(t, snap.Available(snapshot.FeedTrainingDue))
	assert.True(t, snap.Available(snapshot.FeedFleet))
}

func TestClientAPIError(t *testing.T) {
	srv := newAnalyticsServer(t, map[string]any{}, nil)
	_, err := New(srv.URL).FleetSummary(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestRunNetworkOptimization(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/optimizer/run", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"run_id": "r-1", "objective": got["objective"], "status": "completed", "projected_rasm": 11.2})
	}))
	defer srv.Close()

	res, err := New(srv.URL).RunNetworkOptimization(context.Background(), "rasm")
	require.NoError(t, err)
	assert.Equal(t, "rasm", got["objective"])
	assert.Equal(t, "r-1", res.RunID)
	require.NotNil(t, res.ProjectedRASM)
	assert.InDelta(t, 11.2, *res.ProjectedRASM, 1e-9)
}
