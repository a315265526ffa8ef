// Package services holds the client-side entry operations that sit between
// the optimistic store and local persistence. Every write stamps UpdatedAt
// and marks the row dirty so the next sync pass pushes it.
package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/cbtjournal/internal/clock"
	"github.com/dmitrijs2005/cbtjournal/internal/client/models"
	"github.com/dmitrijs2005/cbtjournal/internal/client/repositories/entries"
	"github.com/google/uuid"
)

type EntriesService interface {
	// ListEntries returns entries that are not soft-deleted.
	ListEntries(ctx context.Context) ([]models.Entry, error)
	// CreateEntry persists a draft under a canonical id.
	CreateEntry(ctx context.Context, draft models.Entry) (models.Entry, error)
	// UpdateEntry persists the full merged entry.
	UpdateEntry(ctx context.Context, e models.Entry) (models.Entry, error)
	// RemoveEntry soft-deletes id.
	RemoveEntry(ctx context.Context, id string) error
	// RestoreEntry upserts e with IsDeleted cleared.
	RestoreEntry(ctx context.Context, e models.Entry) (models.Entry, error)
}

type entriesService struct {
	repo  entries.Repository
	clock clock.Clock
}

func NewEntriesService(repo entries.Repository, clk clock.Clock) EntriesService {
	return &entriesService{repo: repo, clock: clk}
}

func (s *entriesService) ListEntries(ctx context.Context) ([]models.Entry, error) {
	rows, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing entries: %w", err)
	}
	return rows, nil
}

func (s *entriesService) CreateEntry(ctx context.Context, draft models.Entry) (models.Entry, error) {
	if err := models.ValidateDraft(draft); err != nil {
		return models.Entry{}, err
	}

	e := draft.Clone()
	if e.ID == "" || models.IsTempID(e.ID) {
		e.ID = uuid.NewString()
	}
	e.UpdatedAt = s.clock.Now()
	e.IsDeleted = false
	e.Dirty = true

	if err := s.repo.Add(ctx, e); err != nil {
		return models.Entry{}, fmt.Errorf("saving error: %w", err)
	}
	return e, nil
}

func (s *entriesService) UpdateEntry(ctx context.Context, e models.Entry) (models.Entry, error) {
	cur, err := s.repo.GetByID(ctx, e.ID)
	if err != nil {
		return models.Entry{}, fmt.Errorf("error retrieving entry: %w", err)
	}

	out := e.Clone()
	if out.AccountID == "" {
		out.AccountID = cur.AccountID
	}
	out.CreatedAt = cur.CreatedAt
	out.UpdatedAt = s.clock.Now()
	out.Dirty = true

	if err := s.repo.Put(ctx, out); err != nil {
		return models.Entry{}, fmt.Errorf("error updating entry: %w", err)
	}
	return out, nil
}

func (s *entriesService) RemoveEntry(ctx context.Context, id string) error {
	now := s.clock.Now()
	_, err := s.repo.Update(ctx, id, models.Patch{
		IsDeleted: models.Ptr(true),
		UpdatedAt: &now,
		Dirty:     models.Ptr(true),
	})
	if err != nil {
		return fmt.Errorf("error deleting entry: %w", err)
	}
	return nil
}

func (s *entriesService) RestoreEntry(ctx context.Context, e models.Entry) (models.Entry, error) {
	out := e.Clone()
	out.IsDeleted = false
	out.UpdatedAt = s.clock.Now()
	out.Dirty = true

	if cur, err := s.repo.GetByID(ctx, e.ID); err == nil {
		out.CreatedAt = cur.CreatedAt
		if out.AccountID == "" {
			out.AccountID = cur.AccountID
		}
	}

	if err := s.repo.Put(ctx, out); err != nil {
		return models.Entry{}, fmt.Errorf("error restoring entry: %w", err)
	}
	return out, nil
}
