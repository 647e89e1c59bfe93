package engine

import (
	"context"
	"fmt"
	"log/slog"

	"controlroom/internal/domain"
)

// AcknowledgeAlert marks an alert acknowledged. Acknowledging twice is a no-op.
func (e Engine) AcknowledgeAlert(ctx context.Context, id, actorID string) (domain.Alert, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Alert{}, err
	}
	defer tx.Rollback()

	a, err := e.Repo.GetAlert(ctx, tx, id)
	if err != nil {
		return domain.Alert{}, err
	}
	if a.Acknowledged {
		return a, nil
	}
	a.Acknowledged = true
	if err := e.Repo.SetAlertFlags(ctx, tx, a.ID, true, a.Dismissed, e.stamp()); err != nil {
		return domain.Alert{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Alert{}, err
	}
	e.logger().Info("alert acknowledged", slog.String("alert", a.ID), slog.String("actor", actorID))
	return a, nil
}

// AlertActionResult is what acting on an alert produced.
type AlertActionResult struct {
	Alert     domain.Alert      `json:"alert"`
	Decisions []domain.Decision `json:"decisions"`
	// RefreshRequested asks the caller to run a refresh pass.
	RefreshRequested bool `json:"refreshRequested"`
}

var alertTransitions = map[domain.AlertActionType]domain.Status{
	domain.ActionApprove:  domain.StatusApproved,
	domain.ActionReject:   domain.StatusRejected,
	domain.ActionSimulate: domain.StatusSimulated,
}

// ActOnAlert runs an alert action. Lifecycle actions apply to every linked decision in one
// transaction: either all linked decisions move or none do. Critical alerts can only be
// dismissed once acknowledged.
func (e Engine) ActOnAlert(ctx context.Context, id string, action domain.AlertActionType, actorID string) (AlertActionResult, error) {
	if !action.Valid() {
		return AlertActionResult{}, fmt.Errorf("alert action %q: %w", action, domain.ErrUnknownValue)
	}
	if action == domain.ActionAcknowledge {
		a, err := e.AcknowledgeAlert(ctx, id, actorID)
		return AlertActionResult{Alert: a}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return AlertActionResult{}, err
	}
	defer tx.Rollback()

	a, err := e.Repo.GetAlert(ctx, tx, id)
	if err != nil {
		return AlertActionResult{}, err
	}
	res := AlertActionResult{Alert: a}
	var moved []domain.Decision
	var from []domain.Status

	switch action {
	case domain.ActionDismiss:
		if a.Severity == domain.AlertCritical && !a.Acknowledged {
			return res, fmt.Errorf("alert %s: %w", a.ID, ErrNotAcknowledged)
		}
		a.Dismissed = true
		if err := e.Repo.SetAlertFlags(ctx, tx, a.ID, a.Acknowledged, true, e.stamp()); err != nil {
			return res, err
		}
	case domain.ActionOpenDecision, domain.ActionReviewDecisions:
		ds, err := e.Repo.GetDecisions(ctx, tx, a.LinkedDecisionIDs)
		if err != nil {
			return res, err
		}
		res.Decisions = ds
	case domain.ActionRefreshFeed:
		res.RefreshRequested = true
	default:
		to := alertTransitions[action]
		for _, decisionID := range a.LinkedDecisionIDs {
			d, prev, err := e.transitionTx(ctx, tx, TransitionOptions{
				DecisionID: decisionID,
				To:         to,
				ActorID:    actorID,
				Note:       "via alert " + a.ID,
			})
			if err != nil {
				return res, fmt.Errorf("decision %s: %w", decisionID, err)
			}
			moved = append(moved, d)
			from = append(from, prev)
		}
		res.Decisions = moved
		if !a.Acknowledged {
			a.Acknowledged = true
			if err := e.Repo.SetAlertFlags(ctx, tx, a.ID, true, a.Dismissed, e.stamp()); err != nil {
				return res, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return AlertActionResult{}, err
	}
	res.Alert = a
	for i, d := range moved {
		e.observe(d, from[i], actorID)
	}
	e.logger().Info("alert action", slog.String("alert", a.ID), slog.String("action", string(action)), slog.String("actor", actorID))
	return res, nil
}
