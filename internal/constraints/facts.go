// Package constraints derives resource availability facts from a snapshot and turns them into
// per-decision constraint records.
package constraints

import (
	"sort"

	"controlroom/internal/snapshot"
)

// Policy holds the staffing thresholds.
type Policy struct {
	MinPilotsUpgauge  int
	ShortStaffedBelow int
}

// DefaultPolicy is 4 pilots for an upgauge and short-staffed under 8.
var DefaultPolicy = Policy{MinPilotsUpgauge: 4, ShortStaffedBelow: 8}

// Facts are the resource figures every rule reads. The Has flags record whether the
// backing feed delivered data; a missing feed never yields a blocking constraint.
type Facts struct {
	Policy            Policy
	FleetByType       map[string]int
	InMaintenance     map[string]int
	AvailableByType   map[string]int
	PilotsByBase      map[string]int
	FAsByBase         map[string]int
	MROConflicts      map[string][]snapshot.MROEvent
	TrainingDueByBase map[string]int
	HasFleet          bool
	HasCrew           bool
	HasMRO            bool
	HasTraining       bool
}

// Evaluate computes facts from a snapshot.
func Evaluate(s *snapshot.Snapshot, p Policy) Facts {
	f := Facts{
		Policy:            p,
		FleetByType:       map[string]int{},
		InMaintenance:     map[string]int{},
		AvailableByType:   map[string]int{},
		PilotsByBase:      map[string]int{},
		FAsByBase:         map[string]int{},
		MROConflicts:      map[string][]snapshot.MROEvent{},
		TrainingDueByBase: map[string]int{},
	}
	if s == nil {
		return f
	}

	if s.Fleet != nil && s.Available(snapshot.FeedFleet) {
		f.HasFleet = true
		for t, n := range s.Fleet.ByType {
			f.FleetByType[t] = n
		}
	}
	if s.Available(snapshot.FeedMaintenanceDue) {
		for _, m := range s.MaintenanceDue {
			f.InMaintenance[m.AircraftType]++
		}
	}
	for t, n := range f.FleetByType {
		f.AvailableByType[t] = max(n-f.InMaintenance[t], 0)
	}

	if s.CrewAlignment != nil && s.Available(snapshot.FeedCrewAlignment) {
		f.HasCrew = true
		for base, c := range s.CrewAlignment.BaseAnalysis {
			f.PilotsByBase[base] = c.Pilots
			f.FAsByBase[base] = c.FlightAttendants
		}
	}

	if s.MROImpact != nil && s.Available(snapshot.FeedMROImpact) {
		f.HasMRO = true
		for _, ev := range s.MROImpact.UpcomingEvents {
			f.MROConflicts[ev.Base] = append(f.MROConflicts[ev.Base], ev)
		}
	}

	if s.Available(snapshot.FeedTrainingDue) {
		f.HasTraining = true
		for _, tr := range s.TrainingDue {
			f.TrainingDueByBase[tr.HomeBase]++
		}
	}
	return f
}

// FleetAvailable returns the number of aircraft of a type not held for maintenance.
func (f Facts) FleetAvailable(aircraftType string) int {
	return f.AvailableByType[aircraftType]
}

// CrewSufficient reports whether a base has enough pilots for a single-aircraft daily upgauge.
func (f Facts) CrewSufficient(base string) bool {
	return f.PilotsByBase[base] >= f.Policy.MinPilotsUpgauge
}

// ShortStaffedBases returns bases below the network staffing threshold, sorted by name.
func (f Facts) ShortStaffedBases() []string {
	var out []string
	for base, n := range f.PilotsByBase {
		if n < f.Policy.ShortStaffedBelow {
			out = append(out, base)
		}
	}
	sort.Strings(out)
	return out
}

// MROConflict returns the upcoming maintenance events at a base.
func (f Facts) MROConflict(base string) []snapshot.MROEvent {
	return f.MROConflicts[base]
}
