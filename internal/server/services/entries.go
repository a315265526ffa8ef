// Package services holds the backend use cases behind the gRPC handlers.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cbtjournal/internal/clock"
	"github.com/dmitrijs2005/cbtjournal/internal/common"
	"github.com/dmitrijs2005/cbtjournal/internal/logging"
	"github.com/dmitrijs2005/cbtjournal/internal/server/models"
	"github.com/dmitrijs2005/cbtjournal/internal/server/repositories/repomanager"
)

// Notifier is told when an entry received a fresh analysis.
type Notifier interface {
	NotifyAnalysis(accountID, entryID string)
}

type EntryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	uploader    Uploader
	notifier    Notifier
	clock       clock.Clock
	logger      logging.Logger
}

type Option func(*EntryService)

func WithClock(c clock.Clock) Option { return func(s *EntryService) { s.clock = c } }

func WithLogger(l logging.Logger) Option {
	return func(s *EntryService) { s.logger = l.With("module", "entry_service") }
}

func NewEntryService(db *sql.DB, rm repomanager.RepositoryManager, uploader Uploader, notifier Notifier, opts ...Option) *EntryService {
	s := &EntryService{
		db:          db,
		repomanager: rm,
		uploader:    uploader,
		notifier:    notifier,
		clock:       clock.System{},
		logger:      logging.Nop{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *EntryService) FetchAll(ctx context.Context, accountID string) ([]*models.Entry, error) {
	return s.repomanager.Entries(s.db).ListByAccount(ctx, accountID)
}

// Upsert stores e for accountID under last-writer-wins. Analyses are only
// written through AttachAnalysis, so any analysis on e is ignored.
func (s *EntryService) Upsert(ctx context.Context, accountID string, e *models.Entry) (*models.Entry, error) {
	if e.ID == "" || e.UpdatedAt.IsZero() {
		return nil, fmt.Errorf("%w: id and updated_at are required", common.ErrorInvalidEntry)
	}

	e.AccountID = accountID
	e.AI = nil
	if e.CreatedAt.IsZero() {
		e.CreatedAt = e.UpdatedAt
	}

	return s.repomanager.Entries(s.db).Upsert(ctx, e)
}

func (s *EntryService) Remove(ctx context.Context, accountID, id string, deletedAt time.Time) error {
	if id == "" || deletedAt.IsZero() {
		return fmt.Errorf("%w: id and updated_at are required", common.ErrorInvalidEntry)
	}
	return s.repomanager.Entries(s.db).Tombstone(ctx, accountID, id, deletedAt)
}

// AttachAnalysis stores payload as the entry's analysis, stamped now, and
// notifies realtime subscribers of the account.
func (s *EntryService) AttachAnalysis(ctx context.Context, accountID, entryID string, payload json.RawMessage) (*models.Entry, error) {
	if entryID == "" || !json.Valid(payload) {
		return nil, fmt.Errorf("%w: entry id and a JSON payload are required", common.ErrorInvalidEntry)
	}

	ai := models.AIAnalysis{Payload: payload, CreatedAt: s.clock.Now().UTC()}
	stored, err := s.repomanager.Entries(s.db).SetAnalysis(ctx, accountID, entryID, ai)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "analysis attached", "account", accountID, "entry", entryID)
	if s.notifier != nil {
		s.notifier.NotifyAnalysis(accountID, entryID)
	}
	return stored, nil
}
