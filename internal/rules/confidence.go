package rules

import "controlroom/internal/domain"

// ConfidenceScorer grades a decision from its evidence. It is pluggable so the thresholds can be
// calibrated against realized outcomes.
type ConfidenceScorer func(ev domain.Evidence) domain.Confidence

// LoadFactorConfidence grades on load factor alone: above 0.90 high, above 0.75 medium.
func LoadFactorConfidence(ev domain.Evidence) domain.Confidence {
	return ThresholdConfidence(0.90, 0.75)(ev)
}

// ThresholdConfidence builds a load factor scorer with custom cut points.
func ThresholdConfidence(high, medium float64) ConfidenceScorer {
	return func(ev domain.Evidence) domain.Confidence {
		if ev.LoadFactor == nil {
			return domain.ConfidenceLow
		}
		switch lf := *ev.LoadFactor; {
		case lf > high:
			return domain.ConfidenceHigh
		case lf > medium:
			return domain.ConfidenceMedium
		default:
			return domain.ConfidenceLow
		}
	}
}
