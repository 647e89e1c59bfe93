package snapshot

import "strings"

// NormalizeMarkets converts wire market records into engine form: market share arrives as a
// percent and becomes a fraction, and non-positive fares or distances are cleared so policy
// fallbacks apply. It returns the number of records that had out-of-bounds fields.
func NormalizeMarkets(in []Market) ([]Market, int) {
	out := make([]Market, 0, len(in))
	bad := 0
	for _, m := range in {
		flagged := false
		m.Share = m.Share / 100
		if m.Share < 0 || m.Share > 1 {
			flagged = true
			m.Share = clamp(m.Share, 0, 1)
		}
		if m.NKPassengers < 0 {
			flagged = true
			m.NKPassengers = 0
		}
		if m.AvgFare != nil && *m.AvgFare <= 0 {
			flagged = true
			m.AvgFare = nil
		}
		if m.Distance != nil && *m.Distance <= 0 {
			flagged = true
			m.Distance = nil
		}
		if m.Origin == "" && m.Destination == "" {
			if o, d, ok := strings.Cut(m.Key, "-"); ok {
				m.Origin, m.Destination = o, d
			}
		}
		if m.Key == "" && m.Origin == "" {
			bad++
			continue
		}
		if flagged {
			bad++
		}
		out = append(out, m)
	}
	return out, bad
}

// NormalizeMROImpact drops network impact items whose severity is not a known level.
func NormalizeMROImpact(in *MROImpact) (*MROImpact, int) {
	if in == nil {
		return nil, 0
	}
	out := &MROImpact{UpcomingEvents: in.UpcomingEvents}
	bad := 0
	for _, item := range in.NetworkImpact {
		item.Severity = ImpactSeverity(strings.ToLower(string(item.Severity)))
		if !item.Severity.Valid() {
			bad++
			continue
		}
		out.NetworkImpact = append(out.NetworkImpact, item)
	}
	for _, ev := range in.UpcomingEvents {
		if ev.DowntimeDays < 0 {
			bad++
		}
	}
	return out, bad
}

// NormalizeCrewAlignment counts bases with negative headcounts and zeroes them.
func NormalizeCrewAlignment(in *CrewAlignment) (*CrewAlignment, int) {
	if in == nil {
		return nil, 0
	}
	out := &CrewAlignment{BaseAnalysis: make(map[string]BaseCrew, len(in.BaseAnalysis))}
	bad := 0
	for base, c := range in.BaseAnalysis {
		if c.Pilots < 0 || c.FlightAttendants < 0 {
			bad++
			c.Pilots = max(c.Pilots, 0)
			c.FlightAttendants = max(c.FlightAttendants, 0)
		}
		out.BaseAnalysis[base] = c
	}
	return out, bad
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
