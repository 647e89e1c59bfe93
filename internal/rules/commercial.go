package rules

import (
	"fmt"
	"math"

	"controlroom/internal/config"
	"controlroom/internal/constraints"
	"controlroom/internal/domain"
	"controlroom/internal/snapshot"
)

// PriceResponse is the pricing arithmetic of an rm_action.
type PriceResponse struct {
	FareReductionPct float64
	NewFare          float64
	PaxIncrease      float64
	RevenueChange    float64
}

// Reprice computes a fare cut of half the fare disadvantage and the demand it stimulates.
// New fares are rounded to cents and the revenue change to whole dollars.
func Reprice(dailyPax, fare, fareAdvantage, elasticity float64) PriceResponse {
	cut := round(math.Abs(fareAdvantage) / 2)
	newFare := round2(fare * (1 - cut/100))
	paxIncrease := round(dailyPax * (cut / 100) * elasticity)
	return PriceResponse{
		FareReductionPct: cut,
		NewFare:          newFare,
		PaxIncrease:      paxIncrease,
		RevenueChange:    round((dailyPax+paxIncrease)*newFare - dailyPax*fare),
	}
}

func rmAction(in *Input, rp config.RulePolicy) []domain.Decision {
	fb := in.Policy.Fallbacks
	below := rp.Param("fare_advantage_below", -5)
	elasticity := rp.Param("elasticity", 1.2)

	var picks []snapshot.Market
	for _, m := range in.Snapshot.Markets {
		if m.FareAdvantage < below {
			picks = append(picks, m)
		}
	}
	sortMarkets(picks, func(a, b snapshot.Market) bool { return a.FareAdvantage < b.FareAdvantage })

	var out []domain.Decision
	for _, m := range top(picks, rp.TopN(3)) {
		fare := m.Fare(fb.AvgFare)
		dist := m.Miles(fb.Distance)
		dailyPax := float64(m.DailyPax())
		pr := Reprice(dailyPax, fare, m.FareAdvantage, elasticity)
		lf := routeLoadFactor(in.Snapshot, m.Origin, fb.LoadFactor)

		priority := domain.PriorityMedium
		if m.FareAdvantage < 3*below {
			priority = domain.PriorityHigh
		}
		response := domain.SeverityOK
		if m.CompetitiveIntensity == "high" {
			response = domain.SeverityWarning
		}

		out = append(out, domain.Decision{
			RouteKey:      m.RouteKey(),
			Title:         fmt.Sprintf("Cut fares %.0f%% on %s", pr.FareReductionPct, m.RouteKey()),
			Description:   fmt.Sprintf("Fares are %.1f%% above the competitor; a %.0f%% cut recovers price-sensitive demand.", -m.FareAdvantage, pr.FareReductionPct),
			Category:      domain.CategoryRMAction,
			Priority:      priority,
			RevenueImpact: pr.RevenueChange,
			RASMImpact:    round4(SeatRASM(1, pr.RevenueChange, 182, dist)),
			CurrentState:  fmt.Sprintf("$%.2f avg fare, %.0f pax/day", fare, dailyPax),
			ProposedState: fmt.Sprintf("$%.2f avg fare, %.0f pax/day", pr.NewFare, dailyPax+pr.PaxIncrease),
			Consumption:   domain.Consumption{MROFeasibility: domain.MROFeasible},
			Constraints: []domain.Constraint{
				constraints.Commercial(response,
					fmt.Sprintf("Competitive intensity %s; matching response possible", orUnknown(m.CompetitiveIntensity)),
					"Monitor competitor fares for 7 days"),
			},
			Evidence: evidence(domain.Float(lf), nil, domain.Float(m.FareAdvantage/100),
				fmt.Sprintf("Fare disadvantage %.1f%%, elasticity %.1f", m.FareAdvantage, elasticity)),
			Risks: []string{"Competitor price match", "Revenue dilution if demand does not respond"},
			Owner: "Revenue Management",
		})
	}
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
