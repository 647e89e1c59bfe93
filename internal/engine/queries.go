package engine

import (
	"context"
	"math"

	"controlroom/internal/constraints"
	"controlroom/internal/domain"
	"controlroom/internal/pipeline"
	"controlroom/internal/rasm"
	"controlroom/internal/repo"
	"controlroom/internal/snapshot"
)

var (
	pendingStatuses = []domain.Status{domain.StatusProposed, domain.StatusSimulated}
	liveStatuses    = []domain.Status{domain.StatusProposed, domain.StatusSimulated, domain.StatusApproved, domain.StatusExecuting}
)

func (e Engine) GetDecision(ctx context.Context, id string) (domain.Decision, error) {
	return e.Repo.GetDecision(ctx, nil, id)
}

func (e Engine) ListDecisions(ctx context.Context, f repo.DecisionFilters) ([]domain.Decision, error) {
	return e.Repo.ListDecisions(ctx, nil, f)
}

func (e Engine) GetAlert(ctx context.Context, id string) (domain.Alert, error) {
	return e.Repo.GetAlert(ctx, nil, id)
}

func (e Engine) ListAlerts(ctx context.Context, f repo.AlertFilters) ([]domain.Alert, error) {
	return e.Repo.ListAlerts(ctx, nil, f)
}

func (e Engine) Log(ctx context.Context, f repo.LogFilters) ([]domain.LogEntry, error) {
	return e.Repo.ListLog(ctx, f)
}

// Summary aggregates pending decisions and reports the network RASM position.
func (e Engine) Summary(ctx context.Context) (domain.Summary, error) {
	pending, err := e.Repo.ListDecisions(ctx, nil, repo.DecisionFilters{Statuses: pendingStatuses})
	if err != nil {
		return domain.Summary{}, err
	}
	st, err := e.Repo.GetNetworkState(ctx, nil)
	if err != nil {
		return domain.Summary{}, err
	}
	var s domain.Summary
	var rasmSum float64
	for _, d := range pending {
		s.PendingCount++
		s.PendingRevenue += d.RevenueImpact
		rasmSum += d.RASMImpact
	}
	s.PendingRevenue = math.Round(s.PendingRevenue*100) / 100
	if s.PendingCount > 0 {
		s.AvgPendingRASM = math.Round(rasmSum/float64(s.PendingCount)*10000) / 10000
	}
	pos := rasm.NewPosition(st.BaselineRASM, st.RASMAdjustment)
	s.NetworkRASM = pos.Adjusted
	s.BaselineRASM = pos.Baseline
	s.RASMAdjustment = pos.Adjustment
	return s, nil
}

// Feeds returns the feed health of the last applied pass with ages recomputed now.
func (e Engine) Feeds(ctx context.Context) ([]domain.DataHealthStatus, error) {
	st, err := e.Repo.GetNetworkState(ctx, nil)
	if err != nil {
		return nil, err
	}
	return snapshot.Reclassify(st.Health, e.now(), pipeline.Thresholds(e.Config)), nil
}

// ConstraintStatus summarizes constraints per domain over decisions that are still live.
func (e Engine) ConstraintStatus(ctx context.Context) ([]domain.DomainStatus, error) {
	live, err := e.Repo.ListDecisions(ctx, nil, repo.DecisionFilters{Statuses: liveStatuses})
	if err != nil {
		return nil, err
	}
	health, err := e.Feeds(ctx)
	if err != nil {
		return nil, err
	}
	return constraints.StatusByDomain(live, health), nil
}

// Optimizer returns the optimizer status captured by the last applied pass, if any.
func (e Engine) Optimizer(ctx context.Context) (*snapshot.OptimizerStatus, error) {
	st, err := e.Repo.GetNetworkState(ctx, nil)
	if err != nil {
		return nil, err
	}
	return st.Optimizer, nil
}

// LastEpoch returns the epoch of the last applied pass.
func (e Engine) LastEpoch(ctx context.Context) (uint64, error) {
	st, err := e.Repo.GetNetworkState(ctx, nil)
	if err != nil {
		return 0, err
	}
	return st.Epoch, nil
}
