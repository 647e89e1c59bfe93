// Package outcomes reconciles predicted decision impact with realized impact.
package outcomes

import (
	"math"
	"time"

	"controlroom/internal/domain"
)

// DefaultThreshold is the variance band, in percent, inside which an outcome counts as validated.
const DefaultThreshold = 10.0

// VariancePct is (actual - predicted) / |predicted| · 100. A zero prediction yields 0 when the
// actual is also zero and ±100 otherwise.
func VariancePct(predicted, actual float64) float64 {
	if predicted == 0 {
		switch {
		case actual > 0:
			return 100
		case actual < 0:
			return -100
		default:
			return 0
		}
	}
	return (actual - predicted) / math.Abs(predicted) * 100
}

// Variance computes the revenue and RASM variance of an outcome, rounded for display.
func Variance(predicted, actual domain.Impact) domain.Variance {
	return domain.Variance{
		RevenuePct: round2(VariancePct(predicted.RevenueImpact, actual.RevenueImpact)),
		RASMPct:    round2(VariancePct(predicted.RASMImpact, actual.RASMImpact)),
	}
}

// Classify grades a revenue variance: above +threshold outperformed, below -threshold
// underperformed, otherwise validated. The boundary itself is validated.
func Classify(revenuePct, threshold float64) domain.OutcomeStatus {
	switch {
	case revenuePct > threshold:
		return domain.OutcomeOutperformed
	case revenuePct < -threshold:
		return domain.OutcomeUnderperformed
	default:
		return domain.OutcomeValidated
	}
}

// Elapsed reports whether the tracking period of an outcome has passed at now.
func Elapsed(o domain.TrackedOutcome, now time.Time) bool {
	executed, err := time.Parse(time.RFC3339, o.ExecutedAt)
	if err != nil {
		return false
	}
	return !now.Before(executed.AddDate(0, 0, o.TrackingPeriodDays))
}

// Settle applies an actual impact to an outcome. Outcomes still inside their tracking period
// record the actual but stay tracking.
func Settle(o domain.TrackedOutcome, actual domain.Impact, now time.Time, threshold float64) domain.TrackedOutcome {
	o.Actual = &actual
	v := Variance(o.Predicted, actual)
	o.Variance = &v
	if !Elapsed(o, now) {
		o.Status = domain.OutcomeTracking
		return o
	}
	// Graded on the unrounded variance.
	o.Status = Classify(VariancePct(o.Predicted.RevenueImpact, actual.RevenueImpact), threshold)
	return o
}

// Accuracy is 100 - mean(|revenue variance|) over settled outcomes. ok is false when nothing
// has settled yet.
func Accuracy(items []domain.TrackedOutcome) (score float64, ok bool) {
	var sum float64
	n := 0
	for _, o := range items {
		if o.Status == domain.OutcomeTracking || o.Variance == nil {
			continue
		}
		sum += math.Abs(o.Variance.RevenuePct)
		n++
	}
	if n == 0 {
		return 0, false
	}
	return round2(100 - sum/float64(n)), true
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
