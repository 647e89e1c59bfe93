package engine

import (
	"context"
	"errors"
	"fmt"

	"controlroom/internal/domain"
	"controlroom/internal/outcomes"
	"controlroom/internal/repo"
	"controlroom/internal/snapshot"
)

// RecordActual stores the realized impact of an executed decision. Once the tracking period has
// elapsed and the decision is completed, the outcome is classified and the decision moves to
// validated with the classification on its log entry. A decision still executing keeps its
// outcome tracking; a later Reconcile settles it after completion.
func (e Engine) RecordActual(ctx context.Context, decisionID string, actual domain.Impact, actorID string) (domain.TrackedOutcome, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TrackedOutcome{}, err
	}
	defer tx.Rollback()

	o, err := e.Repo.GetOutcome(ctx, tx, decisionID)
	if err != nil {
		return domain.TrackedOutcome{}, err
	}
	if o.Status != domain.OutcomeTracking {
		return o, fmt.Errorf("outcome for %s already %s: %w", decisionID, o.Status, ErrConflict)
	}
	d, err := e.Repo.GetDecision(ctx, tx, decisionID)
	found := err == nil
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return domain.TrackedOutcome{}, err
	}
	o = outcomes.Settle(o, actual, e.now(), e.threshold())
	if found && d.Status != domain.StatusCompleted {
		o.Status = domain.OutcomeTracking
	}
	if err := e.Repo.UpdateOutcome(ctx, tx, o, e.stamp()); err != nil {
		return domain.TrackedOutcome{}, err
	}

	var (
		validated *domain.Decision
		from      domain.Status
	)
	if found && o.Status != domain.OutcomeTracking {
		vs := o.Status.ValidationStatus()
		d, prev, err := e.transitionTx(ctx, tx, TransitionOptions{
			DecisionID: decisionID,
			To:         domain.StatusValidated,
			ActorID:    actorID,
			Note:       fmt.Sprintf("revenue variance %.2f%%", o.Variance.RevenuePct),
			validation: &vs,
		})
		if err != nil {
			return domain.TrackedOutcome{}, err
		}
		validated, from = &d, prev
	}
	if err := tx.Commit(); err != nil {
		return domain.TrackedOutcome{}, err
	}
	if validated != nil {
		e.observe(*validated, from, actorID)
	}
	return o, nil
}

// Reconcile settles tracking outcomes against reported actuals. Outcomes without a reported
// actual reuse one recorded earlier. It returns how many outcomes left tracking.
func (e Engine) Reconcile(ctx context.Context, actuals []snapshot.ActualOutcome) (int, error) {
	reported := make(map[string]domain.Impact, len(actuals))
	for _, a := range actuals {
		reported[a.DecisionID] = domain.Impact{RevenueImpact: a.RevenueImpact, RASMImpact: a.RASMImpact}
	}
	tracking, err := e.Repo.ListOutcomes(ctx, nil, domain.OutcomeTracking)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, o := range tracking {
		actual, ok := reported[o.DecisionID]
		if !ok {
			if o.Actual == nil || !outcomes.Elapsed(o, e.now()) {
				continue
			}
			actual = *o.Actual
		}
		got, err := e.RecordActual(ctx, o.DecisionID, actual, "system")
		if err != nil {
			return settled, err
		}
		if got.Status != domain.OutcomeTracking {
			settled++
		}
	}
	return settled, nil
}

func (e Engine) Outcomes(ctx context.Context, status domain.OutcomeStatus) ([]domain.TrackedOutcome, error) {
	return e.Repo.ListOutcomes(ctx, nil, status)
}

// Accuracy is the aggregate accuracy over settled outcomes; ok is false before any settle.
func (e Engine) Accuracy(ctx context.Context) (score float64, ok bool, err error) {
	items, err := e.Repo.ListOutcomes(ctx, nil, "")
	if err != nil {
		return 0, false, err
	}
	score, ok = outcomes.Accuracy(items)
	return score, ok, nil
}

func (e Engine) threshold() float64 {
	if e.Config != nil && e.Config.Outcomes.VarianceThreshold > 0 {
		return e.Config.Outcomes.VarianceThreshold
	}
	return outcomes.DefaultThreshold
}
