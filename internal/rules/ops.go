package rules

import (
	"fmt"
	"sort"

	"controlroom/internal/config"
	"controlroom/internal/constraints"
	"controlroom/internal/domain"
	"controlroom/internal/snapshot"
)

func opsBlocked(in *Input, rp config.RulePolicy) []domain.Decision {
	fb := in.Policy.Fallbacks
	minShare := rp.Param("min_share", 0.3)
	f := in.Facts

	var out []domain.Decision
	for _, base := range f.ShortStaffedBases() {
		var best *snapshot.Market
		for i := range in.Snapshot.Markets {
			m := &in.Snapshot.Markets[i]
			if m.Origin != base && m.Destination != base {
				continue
			}
			if m.Share <= minShare {
				continue
			}
			if best == nil || m.NKPassengers > best.NKPassengers ||
				(m.NKPassengers == best.NKPassengers && m.RouteKey() < best.RouteKey()) {
				best = m
			}
		}
		if best == nil {
			continue
		}
		m := *best
		fare := m.Fare(fb.AvgFare)
		dist := m.Miles(fb.Distance)
		pilots := f.PilotsByBase[base]

		resolution := fmt.Sprintf("Hire or reposition pilots to %s", base)
		if due := f.TrainingDueByBase[base]; due > 0 {
			resolution += fmt.Sprintf("; %d crew at %s have recurrent training due", due, base)
		}
		lf := routeLoadFactor(in.Snapshot, base, fb.LoadFactor)

		out = append(out, domain.Decision{
			RouteKey:      m.RouteKey(),
			Title:         fmt.Sprintf("Escalate crew shortage at %s to protect %s", base, m.RouteKey()),
			Description:   fmt.Sprintf("%s has %d pilots, below the network minimum of %d. %s is its largest market above %.0f%% share.", base, pilots, f.Policy.ShortStaffedBelow, m.RouteKey(), minShare*100),
			Category:      domain.CategoryCapacityReallocation,
			Priority:      domain.PriorityHigh,
			RevenueImpact: round(float64(m.DailyPax()) * fare),
			CurrentState:  fmt.Sprintf("%d pilots at %s", pilots, base),
			ProposedState: fmt.Sprintf("Staff %s to %d pilots before adding flying", base, f.Policy.ShortStaffedBelow),
			Consumption: domain.Consumption{
				AircraftHoursPerDay: RoundTripHours(dist, BaseEquipment),
				TailsRequired:       1,
				CrewPairingsPerDay:  1,
				MROFeasibility:      domain.MROFeasible,
			},
			Conflicts: domain.Conflicts{RequiresPrior: []string{"crew-hire-" + base}},
			Constraints: []domain.Constraint{{
				Domain:      domain.DomainCrew,
				Severity:    domain.SeverityBlocking,
				Binding:     true,
				Description: fmt.Sprintf("Only %d pilots at %s; network minimum is %d", pilots, base, f.Policy.ShortStaffedBelow),
				Resolution:  resolution,
				Impact:      fmt.Sprintf("$%.0f/day on %s at risk", float64(m.DailyPax())*fare, m.RouteKey()),
			}},
			Evidence: evidence(domain.Float(lf), nil, nil,
				fmt.Sprintf("%d pax/day at %.0f%% share depend on %s crew", m.DailyPax(), m.Share*100, base)),
			Risks: []string{"Cancellations if a pilot calls out sick", "Duty time exceedance"},
			Owner: "Crew Planning",
		})
	}
	return out
}

func mroImpact(in *Input, rp config.RulePolicy) []domain.Decision {
	if in.Snapshot.MROImpact == nil {
		return nil
	}
	fb := in.Policy.Fallbacks
	swapCost := rp.Param("swap_cost_share", 0.25)
	lf := in.Snapshot.LoadFactor(fb.LoadFactor)

	events := map[string]snapshot.MROEvent{}
	for _, ev := range in.Snapshot.MROImpact.UpcomingEvents {
		events[ev.Aircraft] = ev
	}
	spare := 0
	for _, n := range in.Facts.AvailableByType {
		spare += n
	}

	items := append([]snapshot.MROImpactItem(nil), in.Snapshot.MROImpact.NetworkImpact...)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Base != items[j].Base {
			return items[i].Base < items[j].Base
		}
		return items[i].Aircraft < items[j].Aircraft
	})

	var out []domain.Decision
	for _, it := range items {
		if it.Severity != snapshot.ImpactHigh {
			continue
		}
		ev := events[it.Aircraft]
		routeKey := it.Base + "-" + it.Aircraft

		fleetC := domain.Constraint{Domain: domain.DomainFleet, Severity: domain.SeverityOK,
			Description: fmt.Sprintf("%d spare tails network-wide", spare)}
		switch {
		case !in.Facts.HasFleet:
			fleetC = constraints.Fleet(in.Facts, "spare")
		case spare == 0:
			fleetC = domain.Constraint{Domain: domain.DomainFleet, Severity: domain.SeverityBlocking,
				Description: "No spare tails available for a swap", Resolution: "Wet-lease or cancel affected flying"}
		}

		out = append(out, domain.Decision{
			RouteKey:      routeKey,
			Title:         fmt.Sprintf("Swap tail for %s during maintenance at %s", it.Aircraft, it.Base),
			Description:   fmt.Sprintf("%s is out of service %.0f days for %s. %s", it.Aircraft, ev.DowntimeDays, orUnknown(ev.MaintenanceType), it.Impact),
			Category:      domain.CategoryTailSwap,
			Priority:      domain.PriorityHigh,
			RevenueImpact: -round(182 * lf * fb.AvgFare * swapCost),
			CurrentState:  fmt.Sprintf("%s scheduled from %s", it.Aircraft, orUnknown(ev.StartDate)),
			ProposedState: fmt.Sprintf("Cover %s flying with a spare tail", it.Base),
			Consumption: domain.Consumption{
				TailsRequired:  1,
				MROFeasibility: domain.MRORequiresSwap,
			},
			Constraints: []domain.Constraint{
				{Domain: domain.DomainMRO, Severity: domain.SeverityWarning,
					Description: fmt.Sprintf("%s down %.0f days at %s", it.Aircraft, ev.DowntimeDays, it.Base),
					Resolution:  "Confirm swap tail before the induction date"},
				fleetC,
			},
			Evidence: evidence(domain.Float(lf), nil, nil, fmt.Sprintf("High-severity maintenance impact at %s", it.Base)),
			Risks:    []string{"Swap tail may carry its own maintenance due"},
			Owner:    "MRO Control",
		})
	}
	return out
}

func trainingCompliance(in *Input, rp config.RulePolicy) []domain.Decision {
	if !in.Facts.HasTraining {
		return nil
	}
	minPending := int(rp.Param("min_pending", 3))

	var bases []string
	for base, n := range in.Facts.TrainingDueByBase {
		if n >= minPending {
			bases = append(bases, base)
		}
	}
	sort.Strings(bases)

	var out []domain.Decision
	for _, base := range bases {
		n := in.Facts.TrainingDueByBase[base]
		out = append(out, domain.Decision{
			RouteKey:      base,
			Title:         fmt.Sprintf("Do not add flying at %s until recurrent training clears", base),
			Description:   fmt.Sprintf("%d crew at %s have recurrent training due.", n, base),
			Category:      domain.CategoryDoNotDo,
			Priority:      domain.PriorityHigh,
			CurrentState:  fmt.Sprintf("%d crew with training due", n),
			ProposedState: "Freeze new flying at " + base,
			Consumption:   domain.Consumption{MROFeasibility: domain.MROFeasible},
			Constraints: []domain.Constraint{{
				Domain:      domain.DomainCrew,
				Severity:    domain.SeverityWarning,
				Description: fmt.Sprintf("%d crew with recurrent training due at %s", n, base),
				Resolution:  "Schedule simulator slots",
			}},
			Evidence: evidence(nil, nil, nil, fmt.Sprintf("%d pending recurrent trainings", n)),
			Risks:    []string{fmt.Sprintf("Regulatory compliance risk: %d crew at %s may lapse", n, base)},
			Owner:    "Crew Planning",
		})
	}
	return out
}
