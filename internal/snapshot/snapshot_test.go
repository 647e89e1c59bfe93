package snapshot

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlroom/internal/domain"
)

func f(v float64) *float64 { return &v }

func TestClassifyBoundaries(t *testing.T) {
	th := DefaultThresholds
	assert.Equal(t, domain.FeedLive, Classify(59*time.Second, th))
	assert.Equal(t, domain.FeedAging, Classify(60*time.Second, th))
	assert.Equal(t, domain.FeedAging, Classify(299*time.Second, th))
	assert.Equal(t, domain.FeedStale, Classify(300*time.Second, th))
}

func TestReclassifyAgesHealthyFeedsOnly(t *testing.T) {
	fetched := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	health := []domain.DataHealthStatus{
		Healthy(FeedMarkets, fetched, fetched, 2, DefaultThresholds),
		Disconnected(FeedCrew, errors.New("timeout")),
	}
	require.Equal(t, domain.FeedLive, health[0].Status)

	later := Reclassify(health, fetched.Add(2*time.Minute), DefaultThresholds)
	assert.Equal(t, domain.FeedAging, later[0].Status)
	assert.Equal(t, int64(120), later[0].AgeSeconds)
	assert.Equal(t, 2, later[0].OutOfBoundsCount)
	assert.Equal(t, domain.FeedDisconnected, later[1].Status)
	assert.Equal(t, "timeout", later[1].ErrorMessage)
}

func TestNormalizeMarkets(t *testing.T) {
	in := []Market{
		{Key: "DTW-LAS", NKPassengers: 73000, Share: 62.5, AvgFare: f(140), Distance: f(1749)},
		{Key: "FLL-BOS", Origin: "FLL", Destination: "BOS", NKPassengers: 36500, Share: 40, AvgFare: f(0), Distance: f(-1)},
		{NKPassengers: 10},
	}
	out, bad := NormalizeMarkets(in)
	require.Len(t, out, 2)
	assert.Equal(t, 2, bad)
	assert.InDelta(t, 0.625, out[0].Share, 1e-9)
	assert.Equal(t, "DTW", out[0].Origin)
	assert.Equal(t, "DTW-LAS", out[0].RouteKey())
	assert.Equal(t, 200, out[0].DailyPax())
	assert.Nil(t, out[1].AvgFare)
	assert.Equal(t, 120.0, out[1].Fare(120))
	assert.Equal(t, 900.0, out[1].Miles(900))
}

func TestNormalizeMROImpactDropsUnknownSeverity(t *testing.T) {
	out, bad := NormalizeMROImpact(&MROImpact{NetworkImpact: []MROImpactItem{
		{Base: "DTW", Severity: "HIGH"},
		{Base: "LAS", Severity: "catastrophic"},
	}})
	require.Len(t, out.NetworkImpact, 1)
	assert.Equal(t, ImpactHigh, out.NetworkImpact[0].Severity)
	assert.Equal(t, 1, bad)
}

func TestSnapshotAvailableAndLoadFactor(t *testing.T) {
	s := &Snapshot{Health: []domain.DataHealthStatus{Disconnected(FeedFleet, nil)}}
	assert.False(t, s.Available(FeedFleet))
	assert.True(t, s.Available(FeedCrew))
	assert.Equal(t, 0.85, s.LoadFactor(0.85))

	s.NetworkStats = &NetworkStats{AvgLoadFactor: f(91)}
	assert.InDelta(t, 0.91, s.LoadFactor(0.85), 1e-9)
}
