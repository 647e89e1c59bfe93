// Package alerts synthesizes alerts from generated decisions and raw feed summaries.
package alerts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"controlroom/internal/domain"
	"controlroom/internal/snapshot"
)

// Policy holds the alert deadlines and thresholds.
type Policy struct {
	BlockedDeadlineDays   int
	FrequencyDeadlineDays int
	MROWarningEvents      int
	TrainingWindowDays    int
	TrainingWarningCrew   int
}

var DefaultPolicy = Policy{
	BlockedDeadlineDays:   14,
	FrequencyDeadlineDays: 7,
	MROWarningEvents:      3,
	TrainingWindowDays:    14,
	TrainingWarningCrew:   5,
}

// Synthesize runs a single pass over the decisions and snapshot. Alert ids are derived from
// what the alert is about, so the same situation keeps the same id across passes.
func Synthesize(decisions []domain.Decision, snap *snapshot.Snapshot, p Policy, now time.Time) []domain.Alert {
	now = now.UTC()
	if snap == nil {
		snap = &snapshot.Snapshot{}
	}
	var out []domain.Alert
	add := func(a domain.Alert) {
		a.CreatedAt = now.Format(time.RFC3339)
		if a.LinkedDecisionIDs == nil {
			a.LinkedDecisionIDs = []string{}
		}
		a.Fingerprint = a.ComputeFingerprint()
		out = append(out, a)
	}

	var freq, rm, tailSwaps, doNotDo []domain.Decision
	for _, d := range decisions {
		if d.HasBlocking() {
			add(blockedAlert(d, now, p))
		}
		switch d.Category {
		case domain.CategoryFrequencyReduction:
			freq = append(freq, d)
		case domain.CategoryRMAction:
			rm = append(rm, d)
		case domain.CategoryTailSwap:
			tailSwaps = append(tailSwaps, d)
		case domain.CategoryDoNotDo:
			doNotDo = append(doNotDo, d)
		}
	}

	if len(freq) > 0 {
		var gain float64
		for _, d := range freq {
			if d.RASMImpact > 0 {
				gain += d.RASMImpact
			}
		}
		add(domain.Alert{
			ID:                "alert-frequency-reduction",
			Severity:          domain.AlertWarning,
			Title:             fmt.Sprintf("%d low-yield route(s) flagged for frequency reduction", len(freq)),
			Description:       fmt.Sprintf("Trimming would add %.2f¢ RASM combined.", gain),
			Deadline:          deadline(now, p.FrequencyDeadlineDays),
			LinkedDecisionIDs: ids(freq),
			Action:            &domain.AlertAction{Label: "Review reductions", Type: domain.ActionReviewDecisions},
		})
	}

	if len(rm) > 0 {
		var routes []string
		var upside float64
		for _, d := range rm {
			routes = append(routes, d.RouteKey)
			if d.RevenueImpact > 0 {
				upside += d.RevenueImpact
			}
		}
		a := domain.Alert{
			ID:                "alert-rm-action",
			Severity:          domain.AlertWarning,
			Title:             fmt.Sprintf("Fare disadvantage on %d route(s)", len(rm)),
			Description:       "Affected routes: " + strings.Join(routes, ", "),
			LinkedDecisionIDs: ids(rm),
			Action:            &domain.AlertAction{Label: "Review pricing", Type: domain.ActionReviewDecisions},
		}
		if upside > 0 {
			a.DollarLeakagePerDay = domain.Float(upside)
		}
		add(a)
	}

	if a, ok := mroAlert(snap, tailSwaps, p); ok {
		add(a)
	}
	if a, ok := trainingAlert(snap, doNotDo, p, now); ok {
		add(a)
	}
	for _, a := range fleetAlerts(snap) {
		add(a)
	}
	for _, h := range snap.Health {
		if h.Status != domain.FeedDisconnected {
			continue
		}
		add(domain.Alert{
			ID:          "alert-feed-" + h.FeedName,
			Severity:    domain.AlertWarning,
			Title:       "Feed disconnected: " + h.FeedName,
			Description: orDefault(h.ErrorMessage, "No response from the analytics API"),
			Action:      &domain.AlertAction{Label: "Retry feed", Type: domain.ActionRefreshFeed},
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return severityRank(out[i].Severity) < severityRank(out[j].Severity)
	})
	return out
}

func blockedAlert(d domain.Decision, now time.Time, p Policy) domain.Alert {
	var reasons []string
	for _, c := range d.Constraints {
		if c.Severity == domain.SeverityBlocking {
			reasons = append(reasons, c.Description)
		}
	}
	a := domain.Alert{
		ID:                "alert-blocked-" + d.ID,
		Severity:          domain.AlertCritical,
		Title:             "Blocked: " + d.Title,
		Description:       strings.Join(reasons, "; "),
		Deadline:          deadline(now, p.BlockedDeadlineDays),
		LinkedDecisionIDs: []string{d.ID},
		Action:            &domain.AlertAction{Label: "Open decision", Type: domain.ActionOpenDecision},
	}
	if d.RevenueImpact > 0 {
		a.DollarLeakagePerDay = domain.Float(math.Abs(d.RevenueImpact))
	}
	return a
}

func mroAlert(snap *snapshot.Snapshot, linked []domain.Decision, p Policy) (domain.Alert, bool) {
	var events int
	if snap.MROImpact != nil {
		events = len(snap.MROImpact.UpcomingEvents)
	}
	if events >= p.MROWarningEvents {
		return domain.Alert{
			ID:                "alert-mro-events",
			Severity:          domain.AlertWarning,
			Title:             fmt.Sprintf("%d upcoming maintenance events", events),
			Description:       "Maintenance inductions will pull tails from the schedule.",
			LinkedDecisionIDs: ids(linked),
			Action:            &domain.AlertAction{Label: "Acknowledge", Type: domain.ActionAcknowledge},
		}, true
	}
	scheduled := len(snap.ScheduledMaintenance)
	if snap.MRO != nil && scheduled == 0 {
		scheduled = snap.MRO.ByStatus["scheduled"] + snap.MRO.ByStatus["SCHEDULED"]
	}
	if events == 0 && scheduled == 0 {
		return domain.Alert{}, false
	}
	return domain.Alert{
		ID:                "alert-mro-events",
		Severity:          domain.AlertInfo,
		Title:             fmt.Sprintf("%d scheduled work order(s)", scheduled),
		Description:       fmt.Sprintf("%d upcoming maintenance event(s) with network impact.", events),
		LinkedDecisionIDs: ids(linked),
		Action:            &domain.AlertAction{Label: "Acknowledge", Type: domain.ActionAcknowledge},
	}, true
}

func trainingAlert(snap *snapshot.Snapshot, linked []domain.Decision, p Policy, now time.Time) (domain.Alert, bool) {
	cutoff := now.AddDate(0, 0, p.TrainingWindowDays)
	n := 0
	for _, tr := range snap.TrainingDue {
		due, ok := parseDate(tr.DueDate)
		if !ok || !due.After(cutoff) {
			n++
		}
	}
	if n == 0 {
		return domain.Alert{}, false
	}
	sev := domain.AlertInfo
	if n >= p.TrainingWarningCrew {
		sev = domain.AlertWarning
	}
	return domain.Alert{
		ID:                "alert-training-due",
		Severity:          sev,
		Title:             fmt.Sprintf("%d crew with recurrent training due within %d days", n, p.TrainingWindowDays),
		Description:       "Schedule simulator slots before qualifications lapse.",
		Deadline:          deadline(now, p.TrainingWindowDays),
		LinkedDecisionIDs: ids(linked),
		Action:            &domain.AlertAction{Label: "Acknowledge", Type: domain.ActionAcknowledge},
	}, true
}

// fleetAlerts raises one info alert per distinct repositioning recommendation. The message
// digest keeps ids apart when a base carries several recommendations of one type.
func fleetAlerts(snap *snapshot.Snapshot) []domain.Alert {
	if snap.FleetAlignment == nil {
		return nil
	}
	var out []domain.Alert
	seen := map[string]bool{}
	for _, rec := range snap.FleetAlignment.Recommendations {
		text := strings.ToLower(rec.Type + " " + rec.Message)
		if !strings.Contains(text, "reposition") && !strings.Contains(text, "imbalance") {
			continue
		}
		sum := sha256.Sum256([]byte(strings.TrimSpace(rec.Message)))
		id := fmt.Sprintf("alert-fleet-%s-%s-%s", strings.ToLower(rec.Base), strings.ToLower(rec.Type), hex.EncodeToString(sum[:4]))
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, domain.Alert{
			ID:          id,
			Severity:    domain.AlertInfo,
			Title:       "Fleet alignment at " + rec.Base,
			Description: rec.Message,
			Action:      &domain.AlertAction{Label: "Acknowledge", Type: domain.ActionAcknowledge},
		})
	}
	return out
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func deadline(now time.Time, days int) *string {
	s := now.AddDate(0, 0, days).Format(time.RFC3339)
	return &s
}

func ids(ds []domain.Decision) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.ID)
	}
	return out
}

func severityRank(s domain.AlertSeverity) int {
	switch s {
	case domain.AlertCritical:
		return 0
	case domain.AlertWarning:
		return 1
	default:
		return 2
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
