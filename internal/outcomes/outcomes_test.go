package outcomes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlroom/internal/domain"
)

var executed = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func tracked(predicted float64) domain.TrackedOutcome {
	return domain.TrackedOutcome{
		DecisionID:         "d1",
		ExecutedAt:         executed.Format(time.RFC3339),
		TrackingPeriodDays: 30,
		Predicted:          domain.Impact{RevenueImpact: predicted, RASMImpact: 0.2},
		Status:             domain.OutcomeTracking,
	}
}

func TestClassificationBoundary(t *testing.T) {
	cases := []struct {
		actual float64
		want   domain.OutcomeStatus
	}{
		{109.9, domain.OutcomeValidated},
		{110.0, domain.OutcomeValidated},
		{110.1, domain.OutcomeOutperformed},
		{90.0, domain.OutcomeValidated},
		{89.9, domain.OutcomeUnderperformed},
	}
	for _, tc := range cases {
		v := Variance(domain.Impact{RevenueImpact: 100}, domain.Impact{RevenueImpact: tc.actual})
		assert.Equal(t, tc.want, Classify(v.RevenuePct, DefaultThreshold), "actual=%v", tc.actual)
	}
}

func TestVarianceNegativePrediction(t *testing.T) {
	// A predicted loss of 200 that turned into a loss of 100 beat the prediction.
	assert.InDelta(t, 50.0, VariancePct(-200, -100), 1e-9)
	assert.Equal(t, 0.0, VariancePct(0, 0))
	assert.Equal(t, 100.0, VariancePct(0, 5))
	assert.Equal(t, -100.0, VariancePct(0, -5))
}

func TestSettleHonorsTrackingPeriod(t *testing.T) {
	o := tracked(1000)
	early := Settle(o, domain.Impact{RevenueImpact: 1300}, executed.AddDate(0, 0, 29), DefaultThreshold)
	assert.Equal(t, domain.OutcomeTracking, early.Status)
	require.NotNil(t, early.Actual)

	done := Settle(o, domain.Impact{RevenueImpact: 1300, RASMImpact: 0.1}, executed.AddDate(0, 0, 30), DefaultThreshold)
	assert.Equal(t, domain.OutcomeOutperformed, done.Status)
	assert.Equal(t, 30.0, done.Variance.RevenuePct)
	assert.Equal(t, -50.0, done.Variance.RASMPct)
}

func TestSettleGradesBeforeRounding(t *testing.T) {
	done := Settle(tracked(100000), domain.Impact{RevenueImpact: 110004}, executed.AddDate(0, 0, 30), DefaultThreshold)
	assert.Equal(t, domain.OutcomeOutperformed, done.Status)
	assert.Equal(t, 10.0, done.Variance.RevenuePct)

	under := Settle(tracked(100000), domain.Impact{RevenueImpact: 89996}, executed.AddDate(0, 0, 30), DefaultThreshold)
	assert.Equal(t, domain.OutcomeUnderperformed, under.Status)
	assert.Equal(t, -10.0, under.Variance.RevenuePct)
}

func TestAccuracySkipsTracking(t *testing.T) {
	_, ok := Accuracy([]domain.TrackedOutcome{tracked(100)})
	assert.False(t, ok)

	at := executed.AddDate(0, 1, 0)
	items := []domain.TrackedOutcome{
		Settle(tracked(100), domain.Impact{RevenueImpact: 110}, at, DefaultThreshold),
		Settle(tracked(100), domain.Impact{RevenueImpact: 70}, at, DefaultThreshold),
		tracked(100),
	}
	score, ok := Accuracy(items)
	require.True(t, ok)
	assert.Equal(t, 80.0, score)
}
