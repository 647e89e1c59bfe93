package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"controlroom/internal/domain"
)

type DecisionFilters struct {
	Statuses []domain.Status
	Category domain.Category
	Priority domain.Priority
	Limit    int
	Offset   int
}

const decisionColumns = `id, status, version, body_json, generated_at, updated_at`

// Critical first, then id.
const decisionOrder = ` ORDER BY CASE priority WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, id`

func scanDecision(scan func(dest ...any) error) (domain.Decision, error) {
	var (
		d       domain.Decision
		id      string
		status  string
		version int64
		body    string
		genAt   string
		updAt   string
	)
	if err := scan(&id, &status, &version, &body, &genAt, &updAt); err != nil {
		if err == sql.ErrNoRows {
			return d, ErrNotFound
		}
		return d, err
	}
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return d, fmt.Errorf("decode decision %s: %w", id, err)
	}
	// The columns are authoritative for lifecycle fields.
	d.ID = id
	d.Status = domain.Status(status)
	d.Version = version
	d.GeneratedAt = genAt
	d.UpdatedAt = updAt
	return d, nil
}

func (r Repo) InsertDecision(ctx context.Context, tx *sql.Tx, d domain.Decision) error {
	body, err := json.Marshal(d)
	if err != nil {
		return err
	}
	_, err = r.on(tx).ExecContext(ctx, `INSERT INTO decisions(id,rule_name,route_key,category,priority,status,fingerprint,version,body_json,generated_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.RuleName, d.RouteKey, string(d.Category), string(d.Priority), string(d.Status), d.Fingerprint(), d.Version, string(body), d.GeneratedAt, d.UpdatedAt)
	return err
}

// UpdateDecision rewrites a decision if its stored version still equals expectVersion.
// d.Version is written as the new version.
func (r Repo) UpdateDecision(ctx context.Context, tx *sql.Tx, d domain.Decision, expectVersion int64) error {
	body, err := json.Marshal(d)
	if err != nil {
		return err
	}
	res, err := r.on(tx).ExecContext(ctx, `UPDATE decisions SET rule_name=?, route_key=?, category=?, priority=?, status=?, fingerprint=?, version=?, body_json=?, generated_at=?, updated_at=?
WHERE id=? AND version=?`,
		d.RuleName, d.RouteKey, string(d.Category), string(d.Priority), string(d.Status), d.Fingerprint(), d.Version, string(body), d.GeneratedAt, d.UpdatedAt,
		d.ID, expectVersion)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetDecision(ctx, tx, d.ID); err != nil {
			return err
		}
		return ErrVersionMismatch
	}
	return nil
}

func (r Repo) DeleteDecision(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.on(tx).ExecContext(ctx, `DELETE FROM decisions WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetDecision(ctx context.Context, tx *sql.Tx, id string) (domain.Decision, error) {
	row := r.on(tx).QueryRowContext(ctx, `SELECT `+decisionColumns+` FROM decisions WHERE id=?`, id)
	return scanDecision(row.Scan)
}

func (r Repo) ListDecisions(ctx context.Context, tx *sql.Tx, f DecisionFilters) ([]domain.Decision, error) {
	var (
		clauses []string
		args    []any
	)
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		clauses = append(clauses, "status IN ("+strings.Join(marks, ",")+")")
	}
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, string(f.Category))
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, string(f.Priority))
	}
	query := `SELECT ` + decisionColumns + ` FROM decisions`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += decisionOrder
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := r.on(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Decision
	for rows.Next() {
		d, err := scanDecision(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) GetDecisions(ctx context.Context, tx *sql.Tx, ids []string) ([]domain.Decision, error) {
	var res []domain.Decision
	for _, id := range ids {
		d, err := r.GetDecision(ctx, tx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, nil
}
