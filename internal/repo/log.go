package repo

import (
	"context"
	"database/sql"
	"time"

	"controlroom/internal/domain"
)

type LogFilters struct {
	DecisionID string
	Type       domain.LogType
	// Before pages backwards: only entries with seq < Before.
	Before int64
	Limit  int
}

const logColumns = `seq, id, decision_id, decision_title, type, ts, actor, revenue_impact, rasm_impact, validation_status, note`

func scanLogEntry(scan func(dest ...any) error) (domain.LogEntry, error) {
	var (
		e          domain.LogEntry
		typ        string
		revenue    sql.NullFloat64
		rasm       sql.NullFloat64
		validation sql.NullString
		note       sql.NullString
	)
	if err := scan(&e.Seq, &e.ID, &e.DecisionID, &e.DecisionTitle, &typ, &e.Timestamp, &e.Actor, &revenue, &rasm, &validation, &note); err != nil {
		return e, err
	}
	e.Type = domain.LogType(typ)
	e.RevenueImpact = floatPtr(revenue)
	e.RASMImpact = floatPtr(rasm)
	if validation.Valid {
		v := domain.ValidationStatus(validation.String)
		e.ValidationStatus = &v
	}
	if note.Valid {
		e.Note = note.String
	}
	return e, nil
}

func queryLog(ctx context.Context, q querier, query string, args ...any) ([]domain.LogEntry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.LogEntry
	for rows.Next() {
		e, err := scanLogEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// ListLog returns entries newest first.
func (r Repo) ListLog(ctx context.Context, f LogFilters) ([]domain.LogEntry, error) {
	query := `SELECT ` + logColumns + ` FROM decision_log WHERE 1=1`
	var args []any
	if f.DecisionID != "" {
		query += " AND decision_id=?"
		args = append(args, f.DecisionID)
	}
	if f.Type != "" {
		query += " AND type=?"
		args = append(args, string(f.Type))
	}
	if f.Before > 0 {
		query += " AND seq<?"
		args = append(args, f.Before)
	}
	query += " ORDER BY seq DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return queryLog(ctx, r.DB, query, args...)
}

// LogAfter returns entries with seq > cursor in append order.
func (r Repo) LogAfter(ctx context.Context, cursor int64, limit int) ([]domain.LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	return queryLog(ctx, r.DB, `SELECT `+logColumns+` FROM decision_log WHERE seq>? ORDER BY seq ASC LIMIT ?`, cursor, limit)
}

func (r Repo) LatestLogSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := r.DB.QueryRowContext(ctx, `SELECT MAX(seq) FROM decision_log`).Scan(&seq); err != nil {
		return 0, err
	}
	return seq.Int64, nil
}

// WebhookCursor returns the last delivered log seq for a webhook. ok is false when the
// webhook has never been seen.
func (r Repo) WebhookCursor(ctx context.Context, webhookID string) (seq int64, ok bool, err error) {
	err = r.DB.QueryRowContext(ctx, `SELECT last_seq FROM webhook_cursors WHERE webhook_id=?`, webhookID).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return seq, true, nil
}

func (r Repo) SetWebhookCursor(ctx context.Context, webhookID string, seq int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.DB.ExecContext(ctx, `INSERT INTO webhook_cursors(webhook_id,last_seq,updated_at) VALUES (?,?,?)
ON CONFLICT(webhook_id) DO UPDATE SET last_seq=excluded.last_seq, updated_at=excluded.updated_at`, webhookID, seq, now)
	return err
}
