package rules

import (
	"fmt"
	"sort"
	"strings"

	"controlroom/internal/config"
	"controlroom/internal/constraints"
	"controlroom/internal/domain"
	"controlroom/internal/snapshot"
)

func upgauge(in *Input, rp config.RulePolicy) []domain.Decision {
	target := in.Policy.Constraints.UpgaugeEquipment
	currentSeats := int(rp.Param("current_seats", 182))
	newSeats := int(rp.Param("new_seats", 228))
	fillLF := rp.Param("load_factor", 0.85)
	fb := in.Policy.Fallbacks

	var recs []snapshot.EquipmentRecommendation
	for _, r := range in.Snapshot.Equipment {
		if r.RecommendedEquipment == target {
			recs = append(recs, r)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].EstimatedDailyPax != recs[j].EstimatedDailyPax {
			return recs[i].EstimatedDailyPax > recs[j].EstimatedDailyPax
		}
		return recs[i].Route < recs[j].Route
	})

	var out []domain.Decision
	for _, rec := range top(recs, rp.TopN(3)) {
		m, _ := findMarket(in.Snapshot.Markets, rec.MarketKey)
		routeKey := rec.Route
		if routeKey == "" {
			routeKey = m.RouteKey()
		}
		origin, _, _ := strings.Cut(routeKey, "-")
		fare := m.Fare(fb.AvgFare)
		dist := m.Miles(fb.Distance)
		dailyPax := float64(rec.EstimatedDailyPax)
		if dailyPax == 0 {
			dailyPax = float64(m.DailyPax())
		}

		additionalPax := round(float64(newSeats-currentSeats) * fillLF)
		revenue := additionalPax * fare
		currentRasm := SeatRASM(dailyPax, fare, currentSeats, dist)
		newRasm := SeatRASM(dailyPax+additionalPax, fare, newSeats, dist)
		asm := float64(newSeats-currentSeats) * dist * 2

		mroC, feas := constraints.MRO(in.Facts, origin)
		crewC := constraints.Crew(in.Facts, origin)
		cons := []domain.Constraint{constraints.Fleet(in.Facts, target), crewC, mroC}

		var requires []string
		if crewC.Severity == domain.SeverityBlocking {
			requires = append(requires, "crew-hire-"+origin)
		}
		risks := []string{"Added seats may not fill outside peak days"}
		if feas == domain.MRORequiresSwap {
			risks = append(risks, "Tail swap needed around maintenance at "+origin)
		}

		lf := routeLoadFactor(in.Snapshot, origin, fb.LoadFactor)
		spill := additionalPax / (dailyPax + additionalPax)
		priority := domain.PriorityMedium
		if revenue >= 5000 {
			priority = domain.PriorityHigh
		}

		out = append(out, domain.Decision{
			RouteKey:      routeKey,
			Title:         fmt.Sprintf("Upgauge %s to %s", routeKey, target),
			Description:   fmt.Sprintf("Swap one daily frequency on %s from %d to %d seats. %s", routeKey, currentSeats, newSeats, rec.Reason),
			Category:      domain.CategoryUpgauge,
			Priority:      priority,
			RevenueImpact: revenue,
			RASMImpact:    round4(newRasm - currentRasm),
			ASMDelta:      domain.Float(asm),
			CurrentState:  fmt.Sprintf("%s (%d seats), %.0f pax/day", BaseEquipment, currentSeats, dailyPax),
			ProposedState: fmt.Sprintf("%s (%d seats), +%.0f pax/day", target, newSeats, additionalPax),
			Consumption: domain.Consumption{
				AircraftHoursPerDay: RoundTripHours(dist, target),
				TailsRequired:       1,
				CrewPairingsPerDay:  1,
				MROFeasibility:      feas,
			},
			Conflicts:   domain.Conflicts{RequiresPrior: requires},
			Constraints: cons,
			Evidence: evidence(domain.Float(lf), domain.Float(round4(spill)), nil,
				fmt.Sprintf("%.0f pax/day recommended for %s; current RASM %.2f¢ vs %.2f¢ upgauged", dailyPax, target, currentRasm, newRasm)),
			Risks: risks,
			Owner: "Network Planning",
		})
	}
	return out
}

// frequencyCandidates returns markets below the RASM cutoff, lowest first.
func frequencyCandidates(in *Input, rp config.RulePolicy) ([]snapshot.Market, float64) {
	fb := in.Policy.Fallbacks
	avg := NetworkAvgRASM(in.Snapshot.Markets, fb.AvgFare, fb.Distance)
	cutoff := rp.Param("rasm_ratio", 0.8) * avg

	var picks []snapshot.Market
	for _, m := range in.Snapshot.Markets {
		if RouteRASM(m, fb.AvgFare, fb.Distance) < cutoff {
			picks = append(picks, m)
		}
	}
	sortMarkets(picks, func(a, b snapshot.Market) bool {
		return RouteRASM(a, fb.AvgFare, fb.Distance) < RouteRASM(b, fb.AvgFare, fb.Distance)
	})
	return top(picks, rp.TopN(2)), avg
}

func capacityReallocation(in *Input, rp config.RulePolicy) []domain.Decision {
	fb := in.Policy.Fallbacks
	minShare := rp.Param("min_share", 0.6)
	minPax := int(rp.Param("min_passengers", 50000))
	seats := int(rp.Param("seats", 182))
	rasmFactor := rp.Param("rasm_factor", 0.02)
	dilution := rp.Param("yield_dilution", 0.85)

	var picks []snapshot.Market
	for _, m := range in.Snapshot.Markets {
		if m.Share > minShare && m.NKPassengers > minPax {
			picks = append(picks, m)
		}
	}
	sortMarkets(picks, func(a, b snapshot.Market) bool { return a.NKPassengers > b.NKPassengers })
	picks = top(picks, rp.TopN(2))

	// The lowest-yield frequency this pass would trim is the one the first addition displaces.
	var displaced string
	if fr := in.Policy.Rule("frequency_reduction"); fr.On() {
		if cands, _ := frequencyCandidates(in, fr); len(cands) > 0 {
			displaced = DecisionID(domain.CategoryFrequencyReduction, cands[0].RouteKey(), in.Row("frequency_reduction"))
		}
	}
	avg := NetworkAvgRASM(in.Snapshot.Markets, fb.AvgFare, fb.Distance)

	var out []domain.Decision
	for i, m := range picks {
		fare := m.Fare(fb.AvgFare)
		dist := m.Miles(fb.Distance)
		lf := routeLoadFactor(in.Snapshot, m.Origin, fb.LoadFactor)
		revenue := round(float64(seats) * lf * fare)
		rasm := (dilution*fare/dist*100 - avg) * rasmFactor

		mroC, feas := constraints.MRO(in.Facts, m.Origin)
		cons := []domain.Constraint{
			constraints.Fleet(in.Facts, BaseEquipment),
			constraints.Crew(in.Facts, m.Origin),
			mroC,
		}
		var displaces []string
		if i == 0 && displaced != "" {
			displaces = []string{displaced}
		}

		out = append(out, domain.Decision{
			RouteKey:      m.RouteKey(),
			Title:         fmt.Sprintf("Add daily frequency on %s", m.RouteKey()),
			Description:   fmt.Sprintf("%.0f%% share on %d annual passengers supports one more daily frequency.", m.Share*100, m.NKPassengers),
			Category:      domain.CategoryCapacityReallocation,
			Priority:      domain.PriorityHigh,
			RevenueImpact: revenue,
			RASMImpact:    round4(rasm),
			ASMDelta:      domain.Float(float64(seats) * dist * 2),
			CurrentState:  fmt.Sprintf("%d pax/day at %.0f%% share", m.DailyPax(), m.Share*100),
			ProposedState: fmt.Sprintf("+1 daily %s frequency (%d seats)", BaseEquipment, seats),
			Consumption: domain.Consumption{
				AircraftHoursPerDay: RoundTripHours(dist, BaseEquipment),
				TailsRequired:       1,
				CrewPairingsPerDay:  1,
				MROFeasibility:      feas,
			},
			Conflicts:   domain.Conflicts{Displaces: displaces},
			Constraints: cons,
			Evidence: evidence(domain.Float(lf), nil, domain.Float(m.FareAdvantage/100),
				fmt.Sprintf("Dominant share %.0f%% with %d pax/day", m.Share*100, m.DailyPax())),
			Risks: []string{"Yield dilution on the added frequency"},
			Owner: "Network Planning",
		})
	}
	return out
}

func frequencyReduction(in *Input, rp config.RulePolicy) []domain.Decision {
	fb := in.Policy.Fallbacks
	paxShare := rp.Param("pax_share", 0.3)
	rasmFactor := rp.Param("rasm_factor", 0.02)
	picks, avg := frequencyCandidates(in, rp)

	var out []domain.Decision
	for _, m := range picks {
		fare := m.Fare(fb.AvgFare)
		dist := m.Miles(fb.Distance)
		routeRasm := RouteRASM(m, fb.AvgFare, fb.Distance)
		dailyPax := float64(m.DailyPax())
		lf := routeLoadFactor(in.Snapshot, m.Origin, fb.LoadFactor)

		out = append(out, domain.Decision{
			RouteKey:      m.RouteKey(),
			Title:         fmt.Sprintf("Reduce frequency on %s", m.RouteKey()),
			Description:   fmt.Sprintf("Route RASM %.2f¢ is below 80%% of the network average %.2f¢.", routeRasm, avg),
			Category:      domain.CategoryFrequencyReduction,
			Priority:      domain.PriorityMedium,
			RevenueImpact: -round(dailyPax * paxShare * fare),
			RASMImpact:    round4((avg - routeRasm) * rasmFactor),
			ASMDelta:      domain.Float(-float64(182) * dist * 2),
			CurrentState:  fmt.Sprintf("Route RASM %.2f¢, %d pax/day", routeRasm, m.DailyPax()),
			ProposedState: "-1 daily frequency",
			Consumption: domain.Consumption{
				AircraftHoursPerDay: -RoundTripHours(dist, BaseEquipment),
				MROFeasibility:      domain.MROFeasible,
			},
			Constraints: []domain.Constraint{
				constraints.Commercial(domain.SeverityWarning,
					fmt.Sprintf("%.0f%% of %s passengers may be lost to competitors", paxShare*100, m.RouteKey()),
					"Re-accommodate on remaining frequencies"),
				constraints.Network(domain.SeverityOK, "Frees one daily round trip for redeployment"),
			},
			Evidence: evidence(domain.Float(lf), nil, nil,
				fmt.Sprintf("RASM %.2f¢ vs network %.2f¢", routeRasm, avg)),
			Risks: []string{"Share loss to competitors", "Connecting traffic impact"},
			Owner: "Network Planning",
		})
	}
	return out
}

func downgauge(in *Input, rp config.RulePolicy) []domain.Decision {
	fb := in.Policy.Fallbacks
	maxShare := rp.Param("max_share", 0.35)
	currentSeats := int(rp.Param("current_seats", 228))
	newSeats := int(rp.Param("new_seats", 182))
	spillShare := rp.Param("spill_share", 0.5)
	improvement := rp.Param("rasm_improvement", 0.12)

	var picks []snapshot.Market
	for _, m := range in.Snapshot.Markets {
		if m.Share < maxShare {
			picks = append(picks, m)
		}
	}
	sortMarkets(picks, func(a, b snapshot.Market) bool { return a.Share < b.Share })

	var out []domain.Decision
	for _, m := range top(picks, rp.TopN(2)) {
		fare := m.Fare(fb.AvgFare)
		dist := m.Miles(fb.Distance)
		currentRasm := SeatRASM(float64(m.DailyPax()), fare, currentSeats, dist)
		cut := currentSeats - newSeats
		spilled := float64(cut/2) * spillShare
		lf := routeLoadFactor(in.Snapshot, m.Origin, fb.LoadFactor)

		out = append(out, domain.Decision{
			RouteKey:      m.RouteKey(),
			Title:         fmt.Sprintf("Downgauge %s to %s", m.RouteKey(), BaseEquipment),
			Description:   fmt.Sprintf("%.0f%% share does not support %d seats.", m.Share*100, currentSeats),
			Category:      domain.CategoryDowngauge,
			Priority:      domain.PriorityLow,
			RevenueImpact: -round(spilled * fare),
			RASMImpact:    round4(currentRasm * improvement),
			ASMDelta:      domain.Float(-float64(cut) * dist * 2),
			CurrentState:  fmt.Sprintf("%d seats at %.0f%% share", currentSeats, m.Share*100),
			ProposedState: fmt.Sprintf("%s (%d seats)", BaseEquipment, newSeats),
			Consumption: domain.Consumption{
				TailsRequired:  1,
				MROFeasibility: domain.MROFeasible,
			},
			Constraints: []domain.Constraint{
				constraints.Fleet(in.Facts, BaseEquipment),
				constraints.Commercial(domain.SeverityOK, "Spill limited to peak departures", ""),
			},
			Evidence: evidence(domain.Float(lf), domain.Float(round4(spilled/float64(max(m.DailyPax(), 1)))), nil,
				fmt.Sprintf("Share %.0f%%; current RASM %.2f¢", m.Share*100, currentRasm)),
			Risks: []string{"Peak-day spill"},
			Owner: "Network Planning",
		})
	}
	return out
}

func retiming(in *Input, rp config.RulePolicy) []domain.Decision {
	fb := in.Policy.Fallbacks
	minAdv := rp.Param("min_fare_advantage", 3)
	minPax := int(rp.Param("min_passengers", 20000))
	yieldFactor := rp.Param("yield_factor", 0.5)

	var picks []snapshot.Market
	for _, m := range in.Snapshot.Markets {
		if m.FareAdvantage > minAdv && m.NKPassengers > minPax {
			picks = append(picks, m)
		}
	}
	sortMarkets(picks, func(a, b snapshot.Market) bool { return a.FareAdvantage > b.FareAdvantage })

	var out []domain.Decision
	for _, m := range top(picks, rp.TopN(2)) {
		fare := m.Fare(fb.AvgFare)
		dist := m.Miles(fb.Distance)
		dailyPax := float64(m.DailyPax())
		uplift := round(m.FareAdvantage * yieldFactor)
		revenue := round(dailyPax * (uplift / 100) * fare)
		lf := routeLoadFactor(in.Snapshot, m.Origin, fb.LoadFactor)

		out = append(out, domain.Decision{
			RouteKey:      m.RouteKey(),
			Title:         fmt.Sprintf("Retime %s into peak bank", m.RouteKey()),
			Description:   fmt.Sprintf("%.1f%% fare advantage supports a %.0f%% yield uplift at a stronger departure time.", m.FareAdvantage, uplift),
			Category:      domain.CategoryRetiming,
			Priority:      domain.PriorityMedium,
			RevenueImpact: revenue,
			RASMImpact:    round4(SeatRASM(1, revenue, 182, dist)),
			CurrentState:  fmt.Sprintf("%.0f pax/day at $%.0f", dailyPax, fare),
			ProposedState: fmt.Sprintf("Peak departure, +%.0f%% yield", uplift),
			Consumption: domain.Consumption{
				CrewPairingsPerDay: 1,
				MROFeasibility:     domain.MROFeasible,
			},
			Constraints: []domain.Constraint{
				pairingConstraint(in.Facts, m.Origin),
				constraints.Network(domain.SeverityOK, "Retime within existing slot bank"),
			},
			Evidence: evidence(domain.Float(lf), nil, domain.Float(m.FareAdvantage/100),
				fmt.Sprintf("Fare advantage %.1f%% on %d annual passengers", m.FareAdvantage, m.NKPassengers)),
			Risks: []string{"Connection bank disruption"},
			Owner: "Schedule Planning",
		})
	}
	return out
}

// pairingConstraint is the soft crew check for changes that rebuild pairings without adding flying.
func pairingConstraint(f constraints.Facts, base string) domain.Constraint {
	c := constraints.Crew(f, base)
	if c.Severity != domain.SeverityBlocking {
		if f.HasCrew && f.PilotsByBase[base] < f.Policy.ShortStaffedBelow {
			c.Severity = domain.SeverityWarning
			c.Description = fmt.Sprintf("Pairing rebuild at short-staffed base %s (%d pilots)", base, f.PilotsByBase[base])
		}
		return c
	}
	c.Severity = domain.SeverityWarning
	c.Binding = false
	c.Description = fmt.Sprintf("Pairing rebuild at short-staffed base %s (%d pilots)", base, f.PilotsByBase[base])
	c.Impact = ""
	return c
}
