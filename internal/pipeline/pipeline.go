// Package pipeline composes the pure stages of one refresh pass. It reads nothing but its
// arguments and writes nothing but its result.
package pipeline

import (
	"time"

	"controlroom/internal/alerts"
	"controlroom/internal/config"
	"controlroom/internal/constraints"
	"controlroom/internal/domain"
	"controlroom/internal/rasm"
	"controlroom/internal/rules"
	"controlroom/internal/snapshot"
)

// Result is the full output of one pass.
type Result struct {
	Epoch            uint64
	GeneratedAt      time.Time
	Decisions        []domain.Decision
	Alerts           []domain.Alert
	Facts            constraints.Facts
	ConstraintStatus []domain.DomainStatus
	Health           []domain.DataHealthStatus
	BaselineRASM     float64
	HasMarkets       bool
	Actuals          []snapshot.ActualOutcome
	Optimizer        *snapshot.OptimizerStatus
}

// Pipeline binds the policy and confidence scorer.
type Pipeline struct {
	Policy *config.Config
	Scorer rules.ConfidenceScorer
}

// Run evaluates facts, decisions, alerts and the RASM baseline for a snapshot.
func (p Pipeline) Run(snap *snapshot.Snapshot, now time.Time) Result {
	cfg := p.Policy
	if cfg == nil {
		cfg = config.Default()
	}
	if snap == nil {
		snap = &snapshot.Snapshot{}
	}
	now = now.UTC()

	facts := constraints.Evaluate(snap, ConstraintPolicy(cfg))
	decisions := rules.Generator{Policy: cfg, Scorer: p.Scorer}.Generate(snap, facts, now)
	health := snapshot.Reclassify(snap.Health, now, Thresholds(cfg))
	withHealth := *snap
	withHealth.Health = health

	return Result{
		Epoch:            snap.Epoch,
		GeneratedAt:      now,
		Decisions:        decisions,
		Alerts:           alerts.Synthesize(decisions, &withHealth, AlertPolicy(cfg), now),
		Facts:            facts,
		ConstraintStatus: constraints.StatusByDomain(decisions, health),
		Health:           health,
		BaselineRASM:     rasm.Network(snap.Markets, snap.LoadFactor(cfg.Fallbacks.LoadFactor), cfg.Fallbacks.AvgFare, cfg.Fallbacks.Distance),
		HasMarkets:       len(snap.Markets) > 0,
		Actuals:          snap.Outcomes,
		Optimizer:        snap.Optimizer,
	}
}

// ConstraintPolicy extracts the staffing thresholds.
func ConstraintPolicy(cfg *config.Config) constraints.Policy {
	return constraints.Policy{
		MinPilotsUpgauge:  cfg.Constraints.MinPilotsUpgauge,
		ShortStaffedBelow: cfg.Constraints.ShortStaffedBelow,
	}
}

// AlertPolicy extracts the alert deadlines and thresholds.
func AlertPolicy(cfg *config.Config) alerts.Policy {
	return alerts.Policy{
		BlockedDeadlineDays:   cfg.Alerts.BlockedDeadlineDays,
		FrequencyDeadlineDays: cfg.Alerts.FrequencyDeadlineDays,
		MROWarningEvents:      cfg.Alerts.MROWarningEvents,
		TrainingWindowDays:    cfg.Alerts.TrainingWindowDays,
		TrainingWarningCrew:   cfg.Alerts.TrainingWarningCrew,
	}
}

// Thresholds extracts the feed freshness windows.
func Thresholds(cfg *config.Config) snapshot.Thresholds {
	return snapshot.Thresholds{
		Live:  time.Duration(cfg.Feeds.LiveSeconds) * time.Second,
		Aging: time.Duration(cfg.Feeds.AgingSeconds) * time.Second,
	}
}
