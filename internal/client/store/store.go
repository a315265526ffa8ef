// Package store is the in-memory optimistic view of the journal.
//
// Every mutation is applied to the in-memory state first, then confirmed by
// the entries service; a failure rolls the optimistic effect back unless a
// newer mutation has taken over the entry in the meantime. An entry with a
// pending mutation rejects further guarded mutations with ErrBusy.
//
// Hydrate and Refresh share one request counter, so a slow list result never
// overwrites a newer one.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/cbtjournal/internal/client/models"
	"github.com/dmitrijs2005/cbtjournal/internal/client/services"
	"github.com/dmitrijs2005/cbtjournal/internal/clock"
	"github.com/dmitrijs2005/cbtjournal/internal/logging"
)

type Option func(*Store)

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

type subscriber struct {
	id int
	fn func(State)
}

type Store struct {
	svc    services.EntriesService
	clock  clock.Clock
	logger logging.Logger

	mu              sync.Mutex
	st              State
	seq             uint64
	hydratesRunning int
	subs            []subscriber
	nextSub         int
}

func New(svc services.EntriesService, clk clock.Clock, opts ...Option) *Store {
	s := &Store{
		svc:    svc,
		clock:  clk,
		logger: logging.Nop{},
		st:     newState(),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("module", "store")
	return s
}

// Subscribe registers fn to be called after every committed change. The
// returned function unregisters it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.clone()
}

// Visible returns the non-deleted entries in display order.
func (s *Store) Visible() []models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Entry, 0, len(s.st.AllIDs))
	for _, id := range s.st.AllIDs {
		if e, ok := s.st.ByID[id]; ok {
			out = append(out, e.Clone())
		}
	}
	return out
}

// commit must be called with s.mu held. It releases the lock and notifies
// observers with a copy of the new state.
func (s *Store) commit(ctx context.Context) {
	snap := s.st.clone()
	subs := append([]subscriber(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		s.notify(ctx, sub, snap)
	}
}

func (s *Store) notify(ctx context.Context, sub subscriber, st State) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "observer panicked", "subscriber", sub.id, "panic", r)
		}
	}()
	sub.fn(st)
}

func (s *Store) nextOp(kind OpKind, payload models.Entry) PendingOp {
	s.seq++
	p := payload.Clone()
	return PendingOp{Kind: kind, SubmittedAt: s.clock.Now(), Payload: &p, seq: s.seq}
}

// owns reports whether op still holds the pending slot of id.
func (s *Store) owns(id string, op PendingOp) bool {
	cur, ok := s.st.Pending[id]
	return ok && cur.seq == op.seq
}

func (s *Store) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	s.st.HydrateRequestID++
	reqID := s.st.HydrateRequestID
	s.st.IsHydrating = true
	s.hydratesRunning++
	s.commit(ctx)

	list, err := s.svc.ListEntries(ctx)

	s.mu.Lock()
	s.hydratesRunning--
	latest := reqID == s.st.HydrateRequestID
	if latest || s.hydratesRunning == 0 {
		s.st.IsHydrating = false
	}

	if !latest {
		s.logger.Debug(ctx, "discarding stale hydrate result", "request", reqID)
		s.commit(ctx)
		return nil
	}

	if err != nil {
		s.st.Errors[GlobalErrorKey] = err.Error()
		s.commit(ctx)
		return fmt.Errorf("hydrate: %w", err)
	}

	byID := make(map[string]models.Entry, len(list))
	for _, e := range models.Visible(list) {
		byID[e.ID] = e.Clone()
	}
	s.st.ByID = byID
	s.st.reorder()

	now := s.clock.Now()
	s.st.LastHydratedAt = &now
	delete(s.st.Errors, GlobalErrorKey)
	s.commit(ctx)
	return nil
}

// Refresh merges a fresh listing into the current state without raising
// IsHydrating. Entries with a pending mutation are left alone, entries
// absent from the listing are kept, and a listed entry replaces the cached
// one only when it is strictly newer.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.st.HydrateRequestID++
	reqID := s.st.HydrateRequestID
	s.mu.Unlock()

	list, err := s.svc.ListEntries(ctx)

	s.mu.Lock()
	if reqID != s.st.HydrateRequestID {
		s.mu.Unlock()
		s.logger.Debug(ctx, "discarding stale refresh result", "request", reqID)
		return nil
	}

	if err != nil {
		s.st.Errors[GlobalErrorKey] = err.Error()
		s.commit(ctx)
		return fmt.Errorf("refresh: %w", err)
	}

	for _, remote := range list {
		if _, busy := s.st.Pending[remote.ID]; busy {
			continue
		}
		local, ok := s.st.ByID[remote.ID]
		if ok && !remote.NewerThan(local) {
			// An analysis attached without a content edit leaves UpdatedAt
			// alone; only the analysis moves.
			if remote.AINewerThan(local) {
				local.AIResponse = remote.Clone().AIResponse
				s.st.ByID[remote.ID] = local
			}
			continue
		}
		if remote.IsDeleted {
			delete(s.st.ByID, remote.ID)
			continue
		}
		s.st.ByID[remote.ID] = remote.Clone()
	}
	s.st.reorder()
	delete(s.st.Errors, GlobalErrorKey)
	s.commit(ctx)
	return nil
}

// Create inserts draft optimistically under its temporary id and swaps it
// for the canonical entry once the service confirms.
func (s *Store) Create(ctx context.Context, draft models.Entry) (models.Entry, error) {
	if err := models.ValidateDraft(draft); err != nil || !models.IsTempID(draft.ID) {
		return models.Entry{}, ErrInvalidDraft
	}
	tmpID := draft.ID

	s.mu.Lock()
	if _, busy := s.st.Pending[tmpID]; busy {
		s.mu.Unlock()
		return models.Entry{}, fmt.Errorf("create %s: %w", tmpID, ErrBusy)
	}
	op := s.nextOp(OpCreate, draft)
	s.st.ByID[tmpID] = draft.Clone()
	s.st.Pending[tmpID] = op
	s.st.reorder()
	s.commit(ctx)

	created, err := s.svc.CreateEntry(ctx, draft)

	s.mu.Lock()
	if s.owns(tmpID, op) {
		delete(s.st.Pending, tmpID)
	}
	delete(s.st.ByID, tmpID)

	if err != nil {
		s.st.Errors[tmpID] = err.Error()
		s.st.reorder()
		s.commit(ctx)
		return models.Entry{}, fmt.Errorf("create: %w", err)
	}

	delete(s.st.Errors, tmpID)
	s.st.ByID[created.ID] = created.Clone()
	s.st.reorder()
	s.commit(ctx)
	return created, nil
}

// Update applies patch to the cached entry id and persists the merged
// result. On failure the exact pre-update value is restored.
func (s *Store) Update(ctx context.Context, id string, patch models.Patch) (models.Entry, error) {
	s.mu.Lock()
	if _, busy := s.st.Pending[id]; busy {
		s.mu.Unlock()
		return models.Entry{}, fmt.Errorf("update %s: %w", id, ErrBusy)
	}
	cur, ok := s.st.ByID[id]
	if !ok {
		s.mu.Unlock()
		return models.Entry{}, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}

	before := cur.Clone()
	merged := patch.Apply(cur)
	op := s.nextOp(OpUpdate, merged)
	s.st.ByID[id] = merged
	s.st.Pending[id] = op
	s.st.reorder()
	s.commit(ctx)

	saved, err := s.svc.UpdateEntry(ctx, merged)

	s.mu.Lock()
	if !s.owns(id, op) {
		s.mu.Unlock()
		if err != nil {
			return models.Entry{}, fmt.Errorf("update %s: %w: %w", id, ErrSuperseded, err)
		}
		return saved, nil
	}
	delete(s.st.Pending, id)

	if err != nil {
		s.st.ByID[id] = before
		s.st.Errors[id] = err.Error()
		s.st.reorder()
		s.commit(ctx)
		return models.Entry{}, fmt.Errorf("update %s: %w", id, err)
	}

	s.st.ByID[id] = saved.Clone()
	delete(s.st.Errors, id)
	s.st.reorder()
	s.commit(ctx)
	return saved, nil
}

// Remove soft-deletes id. Removing an id that is not visible is a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, busy := s.st.Pending[id]; busy {
		s.mu.Unlock()
		return fmt.Errorf("remove %s: %w", id, ErrBusy)
	}
	cur, ok := s.st.ByID[id]
	if !ok || cur.IsDeleted {
		s.mu.Unlock()
		return nil
	}

	before := cur.Clone()
	deleted := cur.Clone()
	deleted.IsDeleted = true
	op := s.nextOp(OpRemove, deleted)
	s.st.ByID[id] = deleted
	s.st.Pending[id] = op
	s.st.reorder()
	s.commit(ctx)

	err := s.svc.RemoveEntry(ctx, id)

	s.mu.Lock()
	mine := s.owns(id, op)

	if err == nil {
		if mine {
			delete(s.st.Pending, id)
			delete(s.st.ByID, id)
			delete(s.st.Errors, id)
			s.st.reorder()
		}
		s.commit(ctx)
		return nil
	}

	if !mine {
		s.mu.Unlock()
		return fmt.Errorf("remove %s: %w: %w", id, ErrSuperseded, err)
	}

	delete(s.st.Pending, id)
	s.st.ByID[id] = before
	s.st.Errors[id] = err.Error()
	s.st.reorder()
	s.commit(ctx)
	return fmt.Errorf("remove %s: %w", id, err)
}

// Restore brings e back as a live entry. It is not guarded by the mutation
// lock, so it can take over an entry whose removal is still in flight.
func (s *Store) Restore(ctx context.Context, e models.Entry) (models.Entry, error) {
	id := e.ID

	s.mu.Lock()
	prev, had := s.st.ByID[id]
	if had {
		prev = prev.Clone()
	}
	restored := e.Clone()
	restored.IsDeleted = false
	op := s.nextOp(OpUpdate, restored)
	s.st.ByID[id] = restored
	s.st.Pending[id] = op
	s.st.reorder()
	s.commit(ctx)

	saved, err := s.svc.RestoreEntry(ctx, restored)

	s.mu.Lock()
	if !s.owns(id, op) {
		s.mu.Unlock()
		if err != nil {
			return models.Entry{}, fmt.Errorf("restore %s: %w: %w", id, ErrSuperseded, err)
		}
		return saved, nil
	}
	delete(s.st.Pending, id)

	if err != nil {
		if had {
			s.st.ByID[id] = prev
		} else {
			delete(s.st.ByID, id)
		}
		s.st.Errors[id] = err.Error()
		s.st.reorder()
		s.commit(ctx)
		return models.Entry{}, fmt.Errorf("restore %s: %w", id, err)
	}

	s.st.ByID[id] = saved.Clone()
	delete(s.st.Errors, id)
	s.st.reorder()
	s.commit(ctx)
	return saved, nil
}

// ClearErrors wipes every recorded error.
func (s *Store) ClearErrors() {
	s.mu.Lock()
	if len(s.st.Errors) == 0 {
		s.mu.Unlock()
		return
	}
	s.st.Errors = map[string]string{}
	s.commit(context.Background())
}

// RecordGlobalError stores err in the global slot; nil clears it.
func (s *Store) RecordGlobalError(err error) {
	s.mu.Lock()
	if err == nil {
		if _, ok := s.st.Errors[GlobalErrorKey]; !ok {
			s.mu.Unlock()
			return
		}
		delete(s.st.Errors, GlobalErrorKey)
	} else {
		s.st.Errors[GlobalErrorKey] = err.Error()
	}
	s.commit(context.Background())
}

// IsBusy reports whether err is a mutation-lock rejection.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}
