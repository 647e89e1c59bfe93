package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"controlroom/internal/domain"
	"controlroom/internal/snapshot"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound = errors.New("not found")
	// ErrVersionMismatch means the row changed since it was read.
	ErrVersionMismatch = errors.New("version mismatch")
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// on runs against tx when one is open, otherwise against the pool.
func (r Repo) on(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

// NetworkState is the persisted output of the last applied refresh plus the running RASM
// adjustment of executed decisions.
type NetworkState struct {
	Epoch          uint64
	BaselineRASM   float64
	RASMAdjustment float64
	Health         []domain.DataHealthStatus
	Optimizer      *snapshot.OptimizerStatus
	RefreshedAt    string
}

func (r Repo) GetNetworkState(ctx context.Context, tx *sql.Tx) (NetworkState, error) {
	var (
		st        NetworkState
		health    string
		optimizer sql.NullString
		refreshed sql.NullString
	)
	err := r.on(tx).QueryRowContext(ctx, `SELECT epoch, baseline_rasm, rasm_adjustment, health_json, optimizer_json, refreshed_at FROM network_state WHERE id=1`).
		Scan(&st.Epoch, &st.BaselineRASM, &st.RASMAdjustment, &health, &optimizer, &refreshed)
	if err == sql.ErrNoRows {
		return st, ErrNotFound
	}
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal([]byte(health), &st.Health); err != nil {
		return st, fmt.Errorf("decode health: %w", err)
	}
	if optimizer.Valid && optimizer.String != "" {
		var o snapshot.OptimizerStatus
		if err := json.Unmarshal([]byte(optimizer.String), &o); err != nil {
			return st, fmt.Errorf("decode optimizer: %w", err)
		}
		st.Optimizer = &o
	}
	if refreshed.Valid {
		st.RefreshedAt = refreshed.String
	}
	return st, nil
}

// SaveRefresh records the epoch, baseline and feed health of an applied pass. The RASM
// adjustment is left alone.
func (r Repo) SaveRefresh(ctx context.Context, tx *sql.Tx, st NetworkState) error {
	if st.Health == nil {
		st.Health = []domain.DataHealthStatus{}
	}
	health, err := json.Marshal(st.Health)
	if err != nil {
		return err
	}
	var optimizer any
	if st.Optimizer != nil {
		data, err := json.Marshal(st.Optimizer)
		if err != nil {
			return err
		}
		optimizer = string(data)
	}
	_, err = r.on(tx).ExecContext(ctx, `UPDATE network_state SET epoch=?, baseline_rasm=?, health_json=?, optimizer_json=?, refreshed_at=? WHERE id=1`,
		st.Epoch, st.BaselineRASM, string(health), optimizer, nullable(st.RefreshedAt))
	return err
}

func (r Repo) SetRASMAdjustment(ctx context.Context, tx *sql.Tx, adjustment float64) error {
	_, err := r.on(tx).ExecContext(ctx, `UPDATE network_state SET rasm_adjustment=? WHERE id=1`, adjustment)
	return err
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

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
