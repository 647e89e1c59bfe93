package repo

import (
	"context"
	"database/sql"

	"controlroom/internal/domain"
)

const outcomeColumns = `decision_id, decision_title, executed_at, tracking_period_days, predicted_revenue, predicted_rasm,
actual_revenue, actual_rasm, variance_revenue_pct, variance_rasm_pct, status`

func scanOutcome(scan func(dest ...any) error) (domain.TrackedOutcome, error) {
	var (
		o               domain.TrackedOutcome
		actRev, actRasm sql.NullFloat64
		varRev, varRasm sql.NullFloat64
		status          string
	)
	err := scan(&o.DecisionID, &o.DecisionTitle, &o.ExecutedAt, &o.TrackingPeriodDays, &o.Predicted.RevenueImpact, &o.Predicted.RASMImpact,
		&actRev, &actRasm, &varRev, &varRasm, &status)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	o.Status = domain.OutcomeStatus(status)
	if actRev.Valid {
		o.Actual = &domain.Impact{RevenueImpact: actRev.Float64, RASMImpact: actRasm.Float64}
	}
	if varRev.Valid {
		o.Variance = &domain.Variance{RevenuePct: varRev.Float64, RASMPct: varRasm.Float64}
	}
	return o, nil
}

// InsertOutcome opens tracking for a decision. An outcome already open is left as is; the
// return value reports whether a row was created.
func (r Repo) InsertOutcome(ctx context.Context, tx *sql.Tx, o domain.TrackedOutcome, now string) (bool, error) {
	res, err := r.on(tx).ExecContext(ctx, `INSERT OR IGNORE INTO tracked_outcomes(decision_id,decision_title,executed_at,tracking_period_days,predicted_revenue,predicted_rasm,status,updated_at)
VALUES (?,?,?,?,?,?,?,?)`,
		o.DecisionID, o.DecisionTitle, o.ExecutedAt, o.TrackingPeriodDays, o.Predicted.RevenueImpact, o.Predicted.RASMImpact, string(o.Status), now)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r Repo) UpdateOutcome(ctx context.Context, tx *sql.Tx, o domain.TrackedOutcome, now string) error {
	var actRev, actRasm, varRev, varRasm *float64
	if o.Actual != nil {
		actRev, actRasm = &o.Actual.RevenueImpact, &o.Actual.RASMImpact
	}
	if o.Variance != nil {
		varRev, varRasm = &o.Variance.RevenuePct, &o.Variance.RASMPct
	}
	res, err := r.on(tx).ExecContext(ctx, `UPDATE tracked_outcomes SET actual_revenue=?, actual_rasm=?, variance_revenue_pct=?, variance_rasm_pct=?, status=?, updated_at=?
WHERE decision_id=?`,
		nullableFloat(actRev), nullableFloat(actRasm), nullableFloat(varRev), nullableFloat(varRasm), string(o.Status), now, o.DecisionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetOutcome(ctx context.Context, tx *sql.Tx, decisionID string) (domain.TrackedOutcome, error) {
	row := r.on(tx).QueryRowContext(ctx, `SELECT `+outcomeColumns+` FROM tracked_outcomes WHERE decision_id=?`, decisionID)
	return scanOutcome(row.Scan)
}

// ListOutcomes returns outcomes most recently executed first, optionally by status.
func (r Repo) ListOutcomes(ctx context.Context, tx *sql.Tx, status domain.OutcomeStatus) ([]domain.TrackedOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM tracked_outcomes`
	var args []any
	if status != "" {
		query += " WHERE status=?"
		args = append(args, string(status))
	}
	query += " ORDER BY executed_at DESC, decision_id"
	rows, err := r.on(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TrackedOutcome
	for rows.Next() {
		o, err := scanOutcome(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (r Repo) DeleteOutcome(ctx context.Context, tx *sql.Tx, decisionID string) error {
	res, err := r.on(tx).ExecContext(ctx, `DELETE FROM tracked_outcomes WHERE decision_id=?`, decisionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
