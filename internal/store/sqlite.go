package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"
)

// SQLite implements KV and PendingRepo on an embedded SQLite database.
type SQLite struct{ db *sql.DB }

var (
	_ KV          = (*SQLite)(nil)
	_ PendingRepo = (*SQLite)(nil)
)

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite is a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLite) Close() error {
	return r.db.Close()
}

// Get returns the value stored under key, or ErrNotFound.
func (r *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %q: %w", key, err)
	}
	return v, nil
}

// Set stores value under key, replacing any previous value.
func (r *SQLite) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

// UpsertPending inserts or replaces a pending request by identifier.
func (r *SQLite) UpsertPending(ctx context.Context, p PendingRequest) error {
	if p.Identifier == "" {
		return errors.New("empty identifier")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_requests (identifier, content, cron_expr, next_fire_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			content      = excluded.content,
			cron_expr    = excluded.cron_expr,
			next_fire_at = excluded.next_fire_at`,
		p.Identifier, p.Content, toNullString(p.Cron), toUnix(p.NextFireAt), time.Now().UTC().Unix(),
	)
	return err
}

// ListPendingIDs returns all pending identifiers in ascending order.
func (r *SQLite) ListPendingIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT identifier FROM pending_requests ORDER BY identifier`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeletePending removes the given identifiers in one transaction.
// Unknown identifiers are ignored.
func (r *SQLite) DeletePending(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `DELETE FROM pending_requests WHERE identifier = ?`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete %q: %w", id, err)
		}
	}
	return tx.Commit()
}

// ListDue returns up to limit requests whose next_fire_at is <= now,
// ordered by next_fire_at ascending.
func (r *SQLite) ListDue(ctx context.Context, now time.Time, limit int) ([]PendingRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT identifier, content, cron_expr, next_fire_at
		FROM pending_requests
		WHERE next_fire_at <= ?
		ORDER BY next_fire_at ASC, identifier ASC
		LIMIT ?`,
		toUnix(now), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []PendingRequest
	for rows.Next() {
		var (
			p      PendingRequest
			cronNS sql.NullString
			next   int64
		)
		if err := rows.Scan(&p.Identifier, &p.Content, &cronNS, &next); err != nil {
			return nil, err
		}
		p.Cron = fromNullString(cronNS)
		p.NextFireAt = fromUnix(next)
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// SetNextFire moves a request to its next occurrence.
func (r *SQLite) SetNextFire(ctx context.Context, id string, next time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pending_requests
		SET next_fire_at = ?
		WHERE identifier = ?`,
		toUnix(next), id,
	)
	return err
}
