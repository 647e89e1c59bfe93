// Package rasm computes the network RASM baseline decisions are generated and audited against.
package rasm

import (
	"math"

	"controlroom/internal/snapshot"
)

// Network returns passenger revenue over available seat miles, in cents:
// Σ(pax·fare) / Σ(pax/LF·distance) · 100. Seats are inferred from passengers and load factor.
func Network(markets []snapshot.Market, loadFactor, fareFallback, distFallback float64) float64 {
	if loadFactor <= 0 {
		return 0
	}
	var revenue, asm float64
	for _, m := range markets {
		pax := float64(m.NKPassengers)
		if pax <= 0 {
			continue
		}
		revenue += pax * m.Fare(fareFallback)
		asm += pax / loadFactor * m.Miles(distFallback)
	}
	if asm == 0 {
		return 0
	}
	return revenue / asm * 100
}

// Position is the network RASM with the realized adjustments of executed decisions.
type Position struct {
	Baseline   float64 `json:"baseline"`
	Adjustment float64 `json:"adjustment"`
	Adjusted   float64 `json:"adjusted"`
}

// NewPosition rounds the figures to hundredths of a cent.
func NewPosition(baseline, adjustment float64) Position {
	return Position{
		Baseline:   round4(baseline),
		Adjustment: round4(adjustment),
		Adjusted:   round4(baseline + adjustment),
	}
}

// Nudge applies the partial-realization heuristic: an executed decision moves the network
// figure by rasmImpact·realization.
func Nudge(adjustment, rasmImpact, realization float64) float64 {
	return adjustment + rasmImpact*realization
}

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
