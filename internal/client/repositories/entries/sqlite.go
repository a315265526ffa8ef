package entries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cbtjournal/internal/client/models"
	"github.com/dmitrijs2005/cbtjournal/internal/clock"
	"github.com/dmitrijs2005/cbtjournal/internal/common"
	"github.com/dmitrijs2005/cbtjournal/internal/dbx"
)

const selectColumns = `id, account_id, created_at, updated_at, deleted,
	adversity, belief, consequence, dispute, energy,
	ai_payload, ai_created_at, dispute_history, pending`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (models.Entry, error) {
	var (
		e                    models.Entry
		accountID            sql.NullString
		createdAt, updatedAt string
		deleted, pending     int64
		aiPayload, aiCreated sql.NullString
		history              string
	)
	err := s.Scan(&e.ID, &accountID, &createdAt, &updatedAt, &deleted,
		&e.Adversity, &e.Belief, &e.Consequence, &e.Dispute, &e.Energy,
		&aiPayload, &aiCreated, &history, &pending)
	if err != nil {
		return models.Entry{}, err
	}

	e.AccountID = accountID.String
	e.IsDeleted = dbx.Bool(deleted)
	e.Dirty = dbx.Bool(pending)

	if e.CreatedAt, err = clock.ParseISO(createdAt); err != nil {
		return models.Entry{}, fmt.Errorf("entry %s created_at: %w", e.ID, err)
	}
	if e.UpdatedAt, err = clock.ParseISO(updatedAt); err != nil {
		return models.Entry{}, fmt.Errorf("entry %s updated_at: %w", e.ID, err)
	}

	if aiPayload.Valid {
		ai := &models.AIAnalysis{Payload: json.RawMessage(aiPayload.String)}
		if aiCreated.Valid {
			if ai.CreatedAt, err = clock.ParseISO(aiCreated.String); err != nil {
				return models.Entry{}, fmt.Errorf("entry %s ai_created_at: %w", e.ID, err)
			}
		}
		e.AIResponse = ai
	}

	if history != "" {
		if err := json.Unmarshal([]byte(history), &e.DisputeHistory); err != nil {
			return models.Entry{}, fmt.Errorf("entry %s dispute_history: %w", e.ID, err)
		}
		if len(e.DisputeHistory) == 0 {
			e.DisputeHistory = nil
		}
	}
	return e, nil
}

// columnValues returns the persisted representation of e in the column order
// used by Add and Put (everything after id).
func columnValues(e models.Entry) ([]any, error) {
	var accountID sql.NullString
	if e.AccountID != "" {
		accountID = sql.NullString{String: e.AccountID, Valid: true}
	}

	var aiPayload, aiCreated sql.NullString
	if e.AIResponse != nil {
		aiPayload = sql.NullString{String: string(e.AIResponse.Payload), Valid: true}
		if !e.AIResponse.CreatedAt.IsZero() {
			aiCreated = sql.NullString{String: clock.FormatISO(e.AIResponse.CreatedAt), Valid: true}
		}
	}

	history := []byte("[]")
	if len(e.DisputeHistory) > 0 {
		var err error
		if history, err = json.Marshal(e.DisputeHistory); err != nil {
			return nil, fmt.Errorf("encode dispute history: %w", err)
		}
	}

	return []any{
		accountID,
		clock.FormatISO(e.CreatedAt),
		clock.FormatISO(e.UpdatedAt),
		dbx.Int(e.IsDeleted),
		e.Adversity, e.Belief, e.Consequence, e.Dispute, e.Energy,
		aiPayload, aiCreated,
		string(history),
		dbx.Int(e.Dirty),
	}, nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string) ([]models.Entry, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []models.Entry
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

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Entry, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM entries WHERE deleted = 0`)
}

func (r *SQLiteRepository) GetAllIncludingDeleted(ctx context.Context) ([]models.Entry, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM entries`)
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (models.Entry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entry{}, fmt.Errorf("entry %s: %w", id, common.ErrorNotFound)
	}
	if err != nil {
		return models.Entry{}, fmt.Errorf("query row scan failed: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) Add(ctx context.Context, e models.Entry) error {
	vals, err := columnValues(e)
	if err != nil {
		return err
	}
	query := `INSERT INTO entries (` + selectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, append([]any{e.ID}, vals...)...); err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Put(ctx context.Context, e models.Entry) error {
	vals, err := columnValues(e)
	if err != nil {
		return err
	}
	query := `INSERT INTO entries (` + selectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			deleted = excluded.deleted,
			adversity = excluded.adversity,
			belief = excluded.belief,
			consequence = excluded.consequence,
			dispute = excluded.dispute,
			energy = excluded.energy,
			ai_payload = excluded.ai_payload,
			ai_created_at = excluded.ai_created_at,
			dispute_history = excluded.dispute_history,
			pending = excluded.pending`
	if _, err := r.db.ExecContext(ctx, query, append([]any{e.ID}, vals...)...); err != nil {
		return fmt.Errorf("failed to upsert entry: %w", err)
	}
	return nil
}

// Update reads, patches and writes back the row. When the repository is bound
// to a *sql.DB the read-modify-write runs in one transaction.
func (r *SQLiteRepository) Update(ctx context.Context, id string, patch models.Patch) (models.Entry, error) {
	var out models.Entry
	apply := func(ctx context.Context, tx dbx.DBTX) error {
		repo := NewSQLiteRepository(tx)
		cur, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		out = patch.Apply(cur)
		return repo.Put(ctx, out)
	}

	var err error
	if b, ok := r.db.(dbx.TxBeginner); ok {
		err = dbx.WithTx(ctx, b, nil, apply)
	} else {
		err = apply(ctx, r.db)
	}
	if err != nil {
		return models.Entry{}, err
	}
	return out, nil
}

func (r *SQLiteRepository) HardDelete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkClean(ctx context.Context, id string, updatedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE entries SET pending = 0 WHERE id = ? AND updated_at = ?`,
		id, clock.FormatISO(updatedAt))
	if err != nil {
		return fmt.Errorf("failed to mark entry clean: %w", err)
	}
	return nil
}
