package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlroom/internal/domain"
	"controlroom/internal/snapshot"
)

func f(v float64) *float64 { return &v }

func TestRunCriticalAlertsMatchBlockedDecisions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := &snapshot.Snapshot{
		Epoch:     7,
		FetchedAt: now.Add(-90 * time.Second),
		Markets: []snapshot.Market{
			{Key: "FLL-BOS", Origin: "FLL", Destination: "BOS", NKPassengers: 18250, Share: 0.4, AvgFare: f(130), Distance: f(900)},
			{Key: "LAS-LAX", Origin: "LAS", Destination: "LAX", NKPassengers: 30000, Share: 0.2, AvgFare: f(60), Distance: f(236), FareAdvantage: -9},
		},
		Equipment: []snapshot.EquipmentRecommendation{{Route: "LAS-LAX", MarketKey: "LAS-LAX", RecommendedEquipment: "A321neo", EstimatedDailyPax: 82}},
		Fleet:     &snapshot.FleetSummary{ByType: map[string]int{"A321neo": 3, "A320neo": 8}},
		CrewAlignment: &snapshot.CrewAlignment{BaseAnalysis: map[string]snapshot.BaseCrew{
			"FLL": {Pilots: 6}, "LAS": {Pilots: 2},
		}},
		Health: []domain.DataHealthStatus{
			snapshot.Healthy(snapshot.FeedMarkets, now.Add(-90*time.Second), now.Add(-90*time.Second), 0, snapshot.DefaultThresholds),
			snapshot.Disconnected(snapshot.FeedMROImpact, errors.New("boom")),
		},
	}

	res := Pipeline{}.Run(snap, now)
	require.NotEmpty(t, res.Decisions)
	assert.Equal(t, uint64(7), res.Epoch)

	blocked := 0
	for _, d := range res.Decisions {
		if d.HasBlocking() {
			blocked++
		}
	}
	critical := 0
	for _, a := range res.Alerts {
		if a.Severity == domain.AlertCritical {
			critical++
		}
	}
	assert.Equal(t, blocked, critical)
	assert.GreaterOrEqual(t, blocked, 2)

	assert.Equal(t, domain.FeedAging, res.Health[0].Status)
	assert.Greater(t, res.BaselineRASM, 0.0)
	assert.True(t, res.HasMarkets)
	require.Len(t, res.ConstraintStatus, len(domain.ConstraintDomains))

	var feedAlert bool
	for _, a := range res.Alerts {
		if a.ID == "alert-feed-mro_impact" {
			feedAlert = true
		}
	}
	assert.True(t, feedAlert)
}

func TestRunEmptySnapshot(t *testing.T) {
	res := Pipeline{}.Run(nil, time.Now())
	assert.Empty(t, res.Decisions)
	assert.Empty(t, res.Alerts)
	assert.False(t, res.HasMarkets)
	assert.Equal(t, 0.0, res.BaselineRASM)
}
