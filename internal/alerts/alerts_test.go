package alerts

import (
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlroom/internal/domain"
	"controlroom/internal/snapshot"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func blocked(id string) domain.Decision {
	return domain.Decision{
		ID: id, Title: "Upgauge " + id, Category: domain.CategoryUpgauge, Priority: domain.PriorityCritical,
		RevenueImpact: 5460,
		Constraints: []domain.Constraint{
			{Domain: domain.DomainCrew, Severity: domain.SeverityBlocking, Binding: true, Description: "Only 3 pilots at LAS; 4 required"},
		},
	}
}

func byID(as []domain.Alert) map[string]domain.Alert {
	out := map[string]domain.Alert{}
	for _, a := range as {
		out[a.ID] = a
	}
	return out
}

// withPrefix returns the alerts whose id starts with prefix, ordered by id.
func withPrefix(got map[string]domain.Alert, prefix string) []domain.Alert {
	var out []domain.Alert
	for id, a := range got {
		if strings.HasPrefix(id, prefix) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func TestCriticalAlertPerBlockedDecision(t *testing.T) {
	decisions := []domain.Decision{
		blocked("d1"),
		blocked("d2"),
		{ID: "d3", Category: domain.CategoryDowngauge, Constraints: []domain.Constraint{{Domain: domain.DomainFleet, Severity: domain.SeverityWarning}}},
	}
	got := Synthesize(decisions, nil, DefaultPolicy, now)

	critical := 0
	for _, a := range got {
		if a.Severity == domain.AlertCritical {
			critical++
		}
	}
	assert.Equal(t, 2, critical)

	a := byID(got)["alert-blocked-d1"]
	assert.Equal(t, []string{"d1"}, a.LinkedDecisionIDs)
	require.NotNil(t, a.Deadline)
	assert.Equal(t, "2026-03-15T12:00:00Z", *a.Deadline)
	require.NotNil(t, a.Action)
	assert.Equal(t, domain.ActionOpenDecision, a.Action.Type)
	assert.False(t, a.Acknowledged)
	assert.NotEmpty(t, a.Fingerprint)
}

func TestAggregateFrequencyAndPricingAlerts(t *testing.T) {
	decisions := []domain.Decision{
		{ID: "f1", Category: domain.CategoryFrequencyReduction, RASMImpact: 0.12},
		{ID: "f2", Category: domain.CategoryFrequencyReduction, RASMImpact: 0.08},
		{ID: "r1", Category: domain.CategoryRMAction, RouteKey: "FLL-BOS", RevenueImpact: 120},
		{ID: "r2", Category: domain.CategoryRMAction, RouteKey: "ATL-DFW", RevenueImpact: 300},
	}
	got := byID(Synthesize(decisions, nil, DefaultPolicy, now))

	fr := got["alert-frequency-reduction"]
	assert.Equal(t, domain.AlertWarning, fr.Severity)
	assert.Contains(t, fr.Description, "0.20¢")
	assert.Equal(t, "2026-03-08T12:00:00Z", *fr.Deadline)
	assert.Equal(t, []string{"f1", "f2"}, fr.LinkedDecisionIDs)

	rm := got["alert-rm-action"]
	assert.Equal(t, domain.AlertWarning, rm.Severity)
	assert.Equal(t, "Affected routes: FLL-BOS, ATL-DFW", rm.Description)
	require.NotNil(t, rm.DollarLeakagePerDay)
	assert.Equal(t, 420.0, *rm.DollarLeakagePerDay)
}

func TestFeedSummaryAlerts(t *testing.T) {
	snap := &snapshot.Snapshot{
		MROImpact: &snapshot.MROImpact{UpcomingEvents: []snapshot.MROEvent{{Base: "DTW"}, {Base: "LAS"}, {Base: "FLL"}}},
		TrainingDue: []snapshot.TrainingDue{
			{HomeBase: "FLL", DueDate: "2026-03-05"},
			{HomeBase: "FLL", DueDate: "2026-03-10T00:00:00"},
			{HomeBase: "LAS", DueDate: "2026-04-30"},
		},
		FleetAlignment: &snapshot.FleetAlignment{Recommendations: []snapshot.FleetRecommendation{
			{Type: "rebalance", Base: "DTW", Message: "Reposition 2 aircraft from DTW to LAS"},
			{Type: "growth", Base: "MCO", Message: "Add capacity"},
		}},
		Health: []domain.DataHealthStatus{snapshot.Disconnected(snapshot.FeedCrew, errors.New("context deadline exceeded"))},
	}
	got := byID(Synthesize(nil, snap, DefaultPolicy, now))

	assert.Equal(t, domain.AlertWarning, got["alert-mro-events"].Severity)
	assert.Equal(t, domain.AlertInfo, got["alert-training-due"].Severity)
	assert.Contains(t, got["alert-training-due"].Title, "2 crew")
	fleet := withPrefix(got, "alert-fleet-")
	require.Len(t, fleet, 1)
	assert.Equal(t, domain.AlertInfo, fleet[0].Severity)
	assert.Equal(t, "Fleet alignment at DTW", fleet[0].Title)

	feed := got["alert-feed-crew_summary"]
	assert.Equal(t, domain.AlertWarning, feed.Severity)
	assert.Equal(t, domain.ActionRefreshFeed, feed.Action.Type)
	assert.Equal(t, "context deadline exceeded", feed.Description)
}

func TestFleetAlertPerRecommendation(t *testing.T) {
	snap := &snapshot.Snapshot{FleetAlignment: &snapshot.FleetAlignment{Recommendations: []snapshot.FleetRecommendation{
		{Type: "rebalance", Base: "DTW", Message: "Reposition 2 aircraft from DTW to LAS"},
		{Type: "rebalance", Base: "DTW", Message: "Reposition 1 aircraft from DTW to MCO"},
		{Type: "rebalance", Base: "DTW", Message: "Reposition 1 aircraft from DTW to MCO"},
	}}}
	first := withPrefix(byID(Synthesize(nil, snap, DefaultPolicy, now)), "alert-fleet-dtw-rebalance-")
	require.Len(t, first, 2)
	assert.NotEqual(t, first[0].ID, first[1].ID)

	again := withPrefix(byID(Synthesize(nil, snap, DefaultPolicy, now.Add(time.Hour))), "alert-fleet-dtw-rebalance-")
	require.Len(t, again, 2)
	assert.Equal(t, first[0].ID, again[0].ID)
	assert.Equal(t, first[1].ID, again[1].ID)
}

func TestMROInfoFromScheduledWork(t *testing.T) {
	snap := &snapshot.Snapshot{ScheduledMaintenance: []snapshot.ScheduledMaintenance{{Aircraft: "N1"}, {Aircraft: "N2"}}}
	got := byID(Synthesize(nil, snap, DefaultPolicy, now))
	a, ok := got["alert-mro-events"]
	require.True(t, ok)
	assert.Equal(t, domain.AlertInfo, a.Severity)
	assert.Equal(t, "2 scheduled work order(s)", a.Title)
}

func TestTrainingWarningAtFiveCrew(t *testing.T) {
	snap := &snapshot.Snapshot{}
	for i := 0; i < 5; i++ {
		snap.TrainingDue = append(snap.TrainingDue, snapshot.TrainingDue{HomeBase: "FLL", DueDate: "2026-03-02"})
	}
	got := byID(Synthesize(nil, snap, DefaultPolicy, now))
	assert.Equal(t, domain.AlertWarning, got["alert-training-due"].Severity)
}

func TestEmptyInputsProduceNoAlerts(t *testing.T) {
	assert.Empty(t, Synthesize(nil, &snapshot.Snapshot{}, DefaultPolicy, now))
}

func TestCriticalSortsFirstAndIDsAreStable(t *testing.T) {
	decisions := []domain.Decision{{ID: "f1", Category: domain.CategoryFrequencyReduction, RASMImpact: 0.1}, blocked("d1")}
	a := Synthesize(decisions, nil, DefaultPolicy, now)
	b := Synthesize(decisions, nil, DefaultPolicy, now.Add(time.Hour))
	require.Len(t, a, 2)
	assert.Equal(t, domain.AlertCritical, a[0].Severity)
	assert.Equal(t, a[0].ID, b[0].ID)
	assert.Equal(t, a[0].Fingerprint, b[0].Fingerprint)
}
