package constraints

import (
	"fmt"

	"controlroom/internal/domain"
)

// Fleet checks availability of the aircraft type a decision needs.
func Fleet(f Facts, aircraftType string) domain.Constraint {
	if !f.HasFleet {
		return domain.Constraint{
			Domain:      domain.DomainFleet,
			Severity:    domain.SeverityWarning,
			Description: fmt.Sprintf("Fleet feed unavailable; %s availability unverified", aircraftType),
			Resolution:  "Refresh fleet data before approving",
		}
	}
	n := f.FleetAvailable(aircraftType)
	if n == 0 {
		return domain.Constraint{
			Domain:      domain.DomainFleet,
			Severity:    domain.SeverityBlocking,
			Binding:     true,
			Description: fmt.Sprintf("No %s available (%d in maintenance)", aircraftType, f.InMaintenance[aircraftType]),
			Resolution:  fmt.Sprintf("Release a %s from maintenance or lease capacity", aircraftType),
			Impact:      "Decision cannot be staffed with equipment",
		}
	}
	return domain.Constraint{
		Domain:      domain.DomainFleet,
		Severity:    domain.SeverityOK,
		Description: fmt.Sprintf("%d %s available", n, aircraftType),
	}
}

// Crew checks pilot headcount at a base against the upgauge threshold.
func Crew(f Facts, base string) domain.Constraint {
	if !f.HasCrew {
		return domain.Constraint{
			Domain:      domain.DomainCrew,
			Severity:    domain.SeverityWarning,
			Description: fmt.Sprintf("Crew feed unavailable; staffing at %s unverified", base),
			Resolution:  "Refresh crew data before approving",
		}
	}
	pilots := f.PilotsByBase[base]
	if !f.CrewSufficient(base) {
		return domain.Constraint{
			Domain:      domain.DomainCrew,
			Severity:    domain.SeverityBlocking,
			Binding:     true,
			Description: fmt.Sprintf("Only %d pilots at %s; %d required", pilots, base, f.Policy.MinPilotsUpgauge),
			Resolution:  fmt.Sprintf("Hire or reposition pilots to %s", base),
			Impact:      "Added flying cannot be crewed",
		}
	}
	return domain.Constraint{
		Domain:      domain.DomainCrew,
		Severity:    domain.SeverityOK,
		Description: fmt.Sprintf("%d pilots at %s", pilots, base),
	}
}

// MRO checks for maintenance events at a base and returns the matching feasibility.
func MRO(f Facts, base string) (domain.Constraint, domain.MROFeasibility) {
	if !f.HasMRO {
		return domain.Constraint{
			Domain:      domain.DomainMRO,
			Severity:    domain.SeverityWarning,
			Description: fmt.Sprintf("MRO feed unavailable; maintenance at %s unverified", base),
		}, domain.MRORequiresSwap
	}
	events := f.MROConflict(base)
	if len(events) > 0 {
		return domain.Constraint{
			Domain:      domain.DomainMRO,
			Severity:    domain.SeverityWarning,
			Description: fmt.Sprintf("%d maintenance event(s) scheduled at %s", len(events), base),
			Resolution:  "Plan a tail swap around the maintenance window",
		}, domain.MRORequiresSwap
	}
	return domain.Constraint{
		Domain:      domain.DomainMRO,
		Severity:    domain.SeverityOK,
		Description: fmt.Sprintf("No maintenance conflicts at %s", base),
	}, domain.MROFeasible
}

// Commercial is a free-form commercial constraint.
func Commercial(sev domain.Severity, description, resolution string) domain.Constraint {
	return domain.Constraint{
		Domain:      domain.DomainCommercial,
		Severity:    sev,
		Binding:     sev == domain.SeverityBlocking,
		Description: description,
		Resolution:  resolution,
	}
}

// Network is a free-form network constraint.
func Network(sev domain.Severity, description string) domain.Constraint {
	return domain.Constraint{
		Domain:      domain.DomainNetwork,
		Severity:    sev,
		Binding:     sev == domain.SeverityBlocking,
		Description: description,
	}
}
