package grpc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dmitrijs2005/cbtjournal/internal/common"
	"github.com/dmitrijs2005/cbtjournal/internal/server/models"
)

// fakeEntries keeps entries per id and applies last-writer-wins like the
// Postgres repository does.
type fakeEntries struct {
	mu   sync.Mutex
	rows map[string]models.Entry
	now  time.Time
	err  error

	exportKey string
}

func newFakeEntries() *fakeEntries {
	return &fakeEntries{rows: map[string]models.Entry{}, now: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (f *fakeEntries) FetchAll(_ context.Context, accountID string) ([]*models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Entry
	for _, e := range f.rows {
		if e.AccountID == accountID {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

func (f *fakeEntries) Upsert(_ context.Context, accountID string, e *models.Entry) (*models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	cur, ok := f.rows[e.ID]
	if ok && (cur.AccountID != accountID || cur.UpdatedAt.After(e.UpdatedAt)) {
		return nil, common.ErrVersionConflict
	}
	stored := *e
	stored.AccountID = accountID
	stored.AI = cur.AI
	f.rows[e.ID] = stored
	return &stored, nil
}

func (f *fakeEntries) Remove(_ context.Context, accountID, id string, deletedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	cur, ok := f.rows[id]
	if ok && (cur.AccountID != accountID || cur.UpdatedAt.After(deletedAt)) {
		return common.ErrVersionConflict
	}
	cur.ID, cur.AccountID, cur.UpdatedAt, cur.Deleted = id, accountID, deletedAt, true
	f.rows[id] = cur
	return nil
}

func (f *fakeEntries) AttachAnalysis(_ context.Context, accountID, entryID string, payload json.RawMessage) (*models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[entryID]
	if !ok || cur.AccountID != accountID || cur.Deleted {
		return nil, common.ErrorNotFound
	}
	cur.AI = &models.AIAnalysis{Payload: payload, CreatedAt: f.now}
	f.rows[entryID] = cur
	return &cur, nil
}

func (f *fakeEntries) Export(_ context.Context, accountID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.exportKey, nil
}
