// Package entries provides the PostgreSQL-backed entry repository of the
// backend. Every write is guarded by last-writer-wins on updated_at and by
// account ownership.
package entries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cbtjournal/internal/common"
	"github.com/dmitrijs2005/cbtjournal/internal/dbx"
	"github.com/dmitrijs2005/cbtjournal/internal/server/models"
)

const columns = `id, account_id, created_at, updated_at, deleted,
	adversity, belief, consequence, dispute, energy,
	ai_payload, ai_created_at, dispute_history`

// PostgresRepository implements entry storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*models.Entry, error) {
	var (
		e         models.Entry
		aiPayload []byte
		aiCreated sql.NullTime
		history   []byte
	)
	if err := s.Scan(&e.ID, &e.AccountID, &e.CreatedAt, &e.UpdatedAt, &e.Deleted,
		&e.Adversity, &e.Belief, &e.Consequence, &e.Dispute, &e.Energy,
		&aiPayload, &aiCreated, &history); err != nil {
		return nil, err
	}

	if aiPayload != nil {
		e.AI = &models.AIAnalysis{Payload: json.RawMessage(aiPayload), CreatedAt: aiCreated.Time}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &e.DisputeHistory); err != nil {
			return nil, fmt.Errorf("entry %s dispute_history: %w", e.ID, err)
		}
		if len(e.DisputeHistory) == 0 {
			e.DisputeHistory = nil
		}
	}
	return &e, nil
}

// ListByAccount returns every entry of accountID, tombstones included,
// oldest first.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.Entry, error) {
	query := `SELECT ` + columns + ` FROM entries WHERE account_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []*models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Upsert inserts entry or overwrites the stored row when the stored row
// belongs to the same account and is not newer. The stored analysis is only
// replaced by a strictly fresher one. When the guard rejects the write,
// common.ErrVersionConflict is returned.
func (r *PostgresRepository) Upsert(ctx context.Context, entry *models.Entry) (*models.Entry, error) {
	var aiPayload sql.NullString
	var aiCreated sql.NullTime
	if entry.AI != nil {
		aiPayload = sql.NullString{String: string(entry.AI.Payload), Valid: true}
		aiCreated = sql.NullTime{Time: entry.AI.CreatedAt, Valid: true}
	}

	history := []byte("[]")
	if len(entry.DisputeHistory) > 0 {
		var err error
		if history, err = json.Marshal(entry.DisputeHistory); err != nil {
			return nil, fmt.Errorf("encode dispute history: %w", err)
		}
	}

	query := `
		INSERT INTO entries (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id)
		DO UPDATE SET
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted,
			adversity = EXCLUDED.adversity,
			belief = EXCLUDED.belief,
			consequence = EXCLUDED.consequence,
			dispute = EXCLUDED.dispute,
			energy = EXCLUDED.energy,
			dispute_history = EXCLUDED.dispute_history,
			ai_payload = CASE WHEN entries.ai_created_at IS NULL OR EXCLUDED.ai_created_at > entries.ai_created_at
				THEN EXCLUDED.ai_payload ELSE entries.ai_payload END,
			ai_created_at = CASE WHEN entries.ai_created_at IS NULL OR EXCLUDED.ai_created_at > entries.ai_created_at
				THEN EXCLUDED.ai_created_at ELSE entries.ai_created_at END
			WHERE entries.account_id = EXCLUDED.account_id AND entries.updated_at <= EXCLUDED.updated_at
		RETURNING ` + columns

	row := r.db.QueryRowContext(ctx, query,
		entry.ID, entry.AccountID, entry.CreatedAt, entry.UpdatedAt, entry.Deleted,
		entry.Adversity, entry.Belief, entry.Consequence, entry.Dispute, entry.Energy,
		aiPayload, aiCreated, string(history))

	stored, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", entry.ID, common.ErrVersionConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return stored, nil
}

// Tombstone marks id deleted as of deletedAt, inserting a bare tombstone
// when the id is unknown. The same guard as Upsert applies.
func (r *PostgresRepository) Tombstone(ctx context.Context, accountID, id string, deletedAt time.Time) error {
	query := `
		INSERT INTO entries (id, account_id, created_at, updated_at, deleted)
		VALUES ($1, $2, $3, $3, TRUE)
		ON CONFLICT (id)
		DO UPDATE SET
			deleted = TRUE,
			updated_at = EXCLUDED.updated_at
			WHERE entries.account_id = EXCLUDED.account_id AND entries.updated_at <= EXCLUDED.updated_at;
	`
	res, err := r.db.ExecContext(ctx, query, id, accountID, deletedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("entry %s: %w", id, common.ErrVersionConflict)
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// SetAnalysis stores ai on a live entry of accountID. updated_at is left
// alone: analysis freshness is tracked by its own timestamp.
func (r *PostgresRepository) SetAnalysis(ctx context.Context, accountID, id string, ai models.AIAnalysis) (*models.Entry, error) {
	query := `
		UPDATE entries SET ai_payload = $3, ai_created_at = $4
		WHERE id = $1 AND account_id = $2 AND NOT deleted
		RETURNING ` + columns

	row := r.db.QueryRowContext(ctx, query, id, accountID, string(ai.Payload), ai.CreatedAt)
	stored, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", id, common.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return stored, nil
}
