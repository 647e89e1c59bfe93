// Package events appends decision log entries. Entries are written inside the transaction of
// the change they record, so the log never disagrees with decision state.
package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"controlroom/internal/domain"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

// Append stores e and returns it with its id, seq and timestamp filled in. Impact fields are
// stored as given; they are never recomputed later.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, e domain.LogEntry) (domain.LogEntry, error) {
	if tx == nil {
		return e, errors.New("log entries must be written inside a transaction")
	}
	if !e.Type.Valid() {
		return e, fmt.Errorf("log type %q: %w", e.Type, domain.ErrUnknownValue)
	}
	if w.Now == nil {
		w.Now = time.Now
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp == "" {
		e.Timestamp = w.Now().UTC().Format(time.RFC3339)
	}
	if e.Actor == "" {
		e.Actor = "system"
	}
	var validation any
	if e.ValidationStatus != nil {
		validation = string(*e.ValidationStatus)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO decision_log(id,decision_id,decision_title,type,ts,actor,revenue_impact,rasm_impact,validation_status,note)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.DecisionID, e.DecisionTitle, string(e.Type), e.Timestamp, e.Actor,
		nullableFloat(e.RevenueImpact), nullableFloat(e.RASMImpact), validation, nullable(e.Note))
	if err != nil {
		return e, fmt.Errorf("append log entry: %w", err)
	}
	if e.Seq, err = res.LastInsertId(); err != nil {
		return e, err
	}
	return e, nil
}

// ForDecision builds an entry snapshotting the decision's impact at this instant.
func ForDecision(d domain.Decision, typ domain.LogType, actor, note string) domain.LogEntry {
	return domain.LogEntry{
		DecisionID:    d.ID,
		DecisionTitle: d.Title,
		Type:          typ,
		Actor:         actor,
		RevenueImpact: domain.Float(d.RevenueImpact),
		RASMImpact:    domain.Float(d.RASMImpact),
		Note:          note,
	}
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
