package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"controlroom/internal/domain"
	"controlroom/internal/events"
	"controlroom/internal/metrics"
	"controlroom/internal/pipeline"
	"controlroom/internal/repo"
)

// ApplyReport counts what a generation pass did to persisted state.
type ApplyReport struct {
	Epoch     uint64 `json:"epoch"`
	Inserted  int    `json:"inserted"`
	Updated   int    `json:"updated"`
	Unchanged int    `json:"unchanged"`
	Retained  int    `json:"retained"`
	Removed   int    `json:"removed"`
	Alerts    int    `json:"alerts"`
	Settled   int    `json:"settled"`
}

// Apply upserts a generation pass into persisted state by id.
//
// New decisions are inserted as proposed. Pending decisions whose fingerprint is unchanged keep
// their status; changed ones return to proposed. Pending decisions missing from the pass are
// removed. Decisions at approved or later are never touched. Alerts keep their acknowledgement
// while their fingerprint is unchanged. A pass whose epoch is not newer than the last applied
// one is refused with ErrStale.
func (e Engine) Apply(ctx context.Context, res pipeline.Result) (ApplyReport, error) {
	report := ApplyReport{Epoch: res.Epoch}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return report, err
	}
	defer tx.Rollback()

	st, err := e.Repo.GetNetworkState(ctx, tx)
	if err != nil {
		return report, fmt.Errorf("read network state: %w", err)
	}
	if res.Epoch != 0 && res.Epoch <= st.Epoch {
		return report, fmt.Errorf("epoch %d, last applied %d: %w", res.Epoch, st.Epoch, ErrStale)
	}

	now := e.stamp()
	existing, err := e.Repo.ListDecisions(ctx, tx, repo.DecisionFilters{})
	if err != nil {
		return report, err
	}
	byID := make(map[string]domain.Decision, len(existing))
	for _, d := range existing {
		byID[d.ID] = d
	}

	seen := map[string]bool{}
	for _, d := range res.Decisions {
		seen[d.ID] = true
		if d.GeneratedAt == "" {
			d.GeneratedAt = now
		}
		cur, ok := byID[d.ID]
		switch {
		case !ok:
			d.Status = domain.StatusProposed
			d.Version = 1
			d.UpdatedAt = now
			if err := e.Repo.InsertDecision(ctx, tx, d); err != nil {
				return report, fmt.Errorf("insert decision %s: %w", d.ID, err)
			}
			entry := events.ForDecision(d, domain.LogProposed, "system", "generated")
			entry.Timestamp = now
			if _, err := e.Events.Append(ctx, tx, entry); err != nil {
				return report, err
			}
			report.Inserted++
		case !cur.Status.Pending():
			report.Retained++
		case cur.Fingerprint() == d.Fingerprint():
			d.Status = cur.Status
			d.Version = cur.Version
			d.UpdatedAt = cur.UpdatedAt
			if err := e.Repo.UpdateDecision(ctx, tx, d, cur.Version); err != nil {
				return report, fmt.Errorf("refresh decision %s: %w", d.ID, err)
			}
			report.Unchanged++
		default:
			d.Status = domain.StatusProposed
			d.Version = cur.Version + 1
			d.UpdatedAt = now
			if err := e.Repo.UpdateDecision(ctx, tx, d, cur.Version); err != nil {
				return report, fmt.Errorf("update decision %s: %w", d.ID, err)
			}
			if cur.Status == domain.StatusSimulated {
				entry := events.ForDecision(d, domain.LogProposed, "system", "evidence changed; simulation reset")
				entry.Timestamp = now
				if _, err := e.Events.Append(ctx, tx, entry); err != nil {
					return report, err
				}
			}
			report.Updated++
		}
	}
	for _, cur := range existing {
		if seen[cur.ID] || !cur.Status.Pending() {
			continue
		}
		if err := e.Repo.DeleteDecision(ctx, tx, cur.ID); err != nil {
			return report, fmt.Errorf("remove decision %s: %w", cur.ID, err)
		}
		report.Removed++
	}

	if err := e.applyAlerts(ctx, tx, res.Alerts, now); err != nil {
		return report, err
	}
	report.Alerts = len(res.Alerts)

	st.Epoch = res.Epoch
	st.BaselineRASM = res.BaselineRASM
	st.Health = res.Health
	st.Optimizer = res.Optimizer
	st.RefreshedAt = now
	if err := e.Repo.SaveRefresh(ctx, tx, st); err != nil {
		return report, fmt.Errorf("save refresh: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return report, err
	}

	for _, d := range res.Decisions {
		metrics.DecisionsGenerated.WithLabelValues(string(d.Category)).Inc()
	}
	metrics.AlertsActive.Reset()
	for _, a := range res.Alerts {
		metrics.AlertsActive.WithLabelValues(string(a.Severity)).Inc()
	}

	if len(res.Actuals) > 0 {
		settled, err := e.Reconcile(ctx, res.Actuals)
		if err != nil {
			return report, fmt.Errorf("reconcile outcomes: %w", err)
		}
		report.Settled = settled
	}

	e.logger().Info("generation applied",
		slog.Uint64("epoch", res.Epoch),
		slog.Int("inserted", report.Inserted),
		slog.Int("updated", report.Updated),
		slog.Int("removed", report.Removed),
		slog.Int("alerts", report.Alerts))
	return report, nil
}

func (e Engine) applyAlerts(ctx context.Context, tx *sql.Tx, alerts []domain.Alert, now string) error {
	existing, err := e.Repo.ListAlerts(ctx, tx, repo.AlertFilters{IncludeDismissed: true})
	if err != nil {
		return err
	}
	byID := make(map[string]domain.Alert, len(existing))
	for _, a := range existing {
		byID[a.ID] = a
	}
	seen := map[string]bool{}
	for _, a := range alerts {
		seen[a.ID] = true
		if a.Fingerprint == "" {
			a.Fingerprint = a.ComputeFingerprint()
		}
		if a.CreatedAt == "" {
			a.CreatedAt = now
		}
		if cur, ok := byID[a.ID]; ok && cur.Fingerprint == a.Fingerprint {
			a.Acknowledged = cur.Acknowledged
			a.Dismissed = cur.Dismissed
			a.CreatedAt = cur.CreatedAt
		}
		if err := e.Repo.UpsertAlert(ctx, tx, a, now); err != nil {
			return fmt.Errorf("upsert alert %s: %w", a.ID, err)
		}
	}
	for _, a := range existing {
		if seen[a.ID] {
			continue
		}
		if err := e.Repo.DeleteAlert(ctx, tx, a.ID); err != nil {
			return fmt.Errorf("remove alert %s: %w", a.ID, err)
		}
	}
	return nil
}
