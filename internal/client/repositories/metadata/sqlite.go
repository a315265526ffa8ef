package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cbtjournal/internal/clock"
	"github.com/dmitrijs2005/cbtjournal/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, true, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}

// LastAccount returns the account that owned the local rows at the end of the
// previous session, or "" if there was none.
func LastAccount(ctx context.Context, r Repository) (string, error) {
	v, _, err := r.Get(ctx, KeyLastAccount)
	return v, err
}

// SetLastAccount records id; an empty id clears the key.
func SetLastAccount(ctx context.Context, r Repository, id string) error {
	if id == "" {
		return r.Delete(ctx, KeyLastAccount)
	}
	return r.Set(ctx, KeyLastAccount, id)
}

// LastSyncedAt returns the zero time if no pass has completed yet.
func LastSyncedAt(ctx context.Context, r Repository) (time.Time, error) {
	v, ok, err := r.Get(ctx, KeyLastSyncedAt)
	if err != nil || !ok {
		return time.Time{}, err
	}
	t, err := clock.ParseISO(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("metadata[%s]: %w", KeyLastSyncedAt, err)
	}
	return t, nil
}

func SetLastSyncedAt(ctx context.Context, r Repository, t time.Time) error {
	return r.Set(ctx, KeyLastSyncedAt, clock.FormatISO(t))
}
