package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"controlroom/internal/domain"
)

type AlertFilters struct {
	Severity         domain.AlertSeverity
	IncludeDismissed bool
}

const alertColumns = `id, fingerprint, acknowledged, dismissed, body_json, created_at`

func scanAlert(scan func(dest ...any) error) (domain.Alert, error) {
	var (
		a         domain.Alert
		id        string
		fp        string
		ack       int
		dismissed int
		body      string
		createdAt string
	)
	if err := scan(&id, &fp, &ack, &dismissed, &body, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return a, ErrNotFound
		}
		return a, err
	}
	if err := json.Unmarshal([]byte(body), &a); err != nil {
		return a, fmt.Errorf("decode alert %s: %w", id, err)
	}
	a.ID = id
	a.Fingerprint = fp
	a.Acknowledged = ack == 1
	a.Dismissed = dismissed == 1
	a.CreatedAt = createdAt
	return a, nil
}

// UpsertAlert inserts or replaces an alert, including its acknowledgement flags.
func (r Repo) UpsertAlert(ctx context.Context, tx *sql.Tx, a domain.Alert, now string) error {
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = r.on(tx).ExecContext(ctx, `INSERT INTO alerts(id,severity,fingerprint,acknowledged,dismissed,body_json,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET severity=excluded.severity, fingerprint=excluded.fingerprint, acknowledged=excluded.acknowledged,
dismissed=excluded.dismissed, body_json=excluded.body_json, created_at=excluded.created_at, updated_at=excluded.updated_at`,
		a.ID, string(a.Severity), a.Fingerprint, boolInt(a.Acknowledged), boolInt(a.Dismissed), string(body), a.CreatedAt, now)
	return err
}

func (r Repo) SetAlertFlags(ctx context.Context, tx *sql.Tx, id string, acknowledged, dismissed bool, now string) error {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE alerts SET acknowledged=?, dismissed=?, updated_at=? WHERE id=?`,
		boolInt(acknowledged), boolInt(dismissed), now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteAlert(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := r.on(tx).ExecContext(ctx, `DELETE FROM alerts WHERE id=?`, id)
	return err
}

func (r Repo) GetAlert(ctx context.Context, tx *sql.Tx, id string) (domain.Alert, error) {
	row := r.on(tx).QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id=?`, id)
	return scanAlert(row.Scan)
}

// ListAlerts returns critical alerts first, then by creation time and id.
func (r Repo) ListAlerts(ctx context.Context, tx *sql.Tx, f AlertFilters) ([]domain.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE 1=1`
	var args []any
	if f.Severity != "" {
		query += " AND severity=?"
		args = append(args, string(f.Severity))
	}
	if !f.IncludeDismissed {
		query += " AND dismissed=0"
	}
	query += ` ORDER BY CASE severity WHEN 'critical' THEN 0 WHEN 'warning' THEN 1 ELSE 2 END, created_at, id`
	rows, err := r.on(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
