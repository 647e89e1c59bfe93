package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"controlroom/internal/domain"
)

const apiKeyColumns = `id, actor_id, COALESCE(name,''), key_hash, roles_json, created_at`

// HashAPIKey digests a plain key for storage and lookup. Plain keys are never stored.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

func scanAPIKey(scan func(dest ...any) error) (domain.APIKey, error) {
	var (
		k     domain.APIKey
		roles string
	)
	if err := scan(&k.ID, &k.ActorID, &k.Name, &k.KeyHash, &roles, &k.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return k, ErrNotFound
		}
		return k, err
	}
	if err := json.Unmarshal([]byte(roles), &k.Roles); err != nil {
		return k, fmt.Errorf("decode scope of key %s: %w", k.ID, err)
	}
	return k, nil
}

// InsertAPIKey stores a key record. KeyHash carries the digest, and Roles the optional scope.
func (r Repo) InsertAPIKey(ctx context.Context, tx *sql.Tx, k domain.APIKey) error {
	if k.ID == "" || k.ActorID == "" || k.KeyHash == "" {
		return fmt.Errorf("api key %q: id, actor and hash are required", k.ID)
	}
	roles := k.Roles
	if roles == nil {
		roles = []string{}
	}
	scope, err := json.Marshal(roles)
	if err != nil {
		return err
	}
	_, err = r.on(tx).ExecContext(ctx, `INSERT INTO api_keys(id, actor_id, name, key_hash, roles_json, created_at) VALUES (?,?,?,?,?,?)`,
		k.ID, k.ActorID, nullable(k.Name), k.KeyHash, string(scope), k.CreatedAt)
	return err
}

func (r Repo) APIKeyByHash(ctx context.Context, tx *sql.Tx, hash string) (domain.APIKey, error) {
	row := r.on(tx).QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash=?`, hash)
	return scanAPIKey(row.Scan)
}

// ListAPIKeys returns key records, newest first, optionally for one actor.
func (r Repo) ListAPIKeys(ctx context.Context, tx *sql.Tx, actorID string) ([]domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys`
	var args []any
	if actorID != "" {
		query += ` WHERE actor_id=?`
		args = append(args, actorID)
	}
	query += ` ORDER BY created_at DESC, id`
	rows, err := r.on(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, k)
	}
	return res, rows.Err()
}

func (r Repo) RevokeAPIKey(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.on(tx).ExecContext(ctx, `DELETE FROM api_keys WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
