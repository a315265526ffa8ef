package store

import (
	"maps"
	"slices"
	"time"

	"github.com/dmitrijs2005/cbtjournal/internal/client/models"
)

// GlobalErrorKey is the Errors slot for failures not tied to one entry.
const GlobalErrorKey = "global"

type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpRemove OpKind = "remove"
)

// PendingOp is an in-flight mutation. Its presence in State.Pending is the
// per-entry mutation lock.
type PendingOp struct {
	Kind        OpKind
	SubmittedAt time.Time
	Payload     *models.Entry

	seq uint64
}

// State is what observers see. Values handed out by the store are copies.
type State struct {
	ByID   map[string]models.Entry
	AllIDs []string

	Pending map[string]PendingOp
	Errors  map[string]string

	IsHydrating      bool
	LastHydratedAt   *time.Time
	HydrateRequestID uint64
}

func newState() State {
	return State{
		ByID:    map[string]models.Entry{},
		Pending: map[string]PendingOp{},
		Errors:  map[string]string{},
	}
}

func (s State) clone() State {
	out := s
	out.ByID = make(map[string]models.Entry, len(s.ByID))
	for id, e := range s.ByID {
		out.ByID[id] = e.Clone()
	}
	out.AllIDs = slices.Clone(s.AllIDs)
	out.Pending = make(map[string]PendingOp, len(s.Pending))
	for id, op := range s.Pending {
		if op.Payload != nil {
			p := op.Payload.Clone()
			op.Payload = &p
		}
		out.Pending[id] = op
	}
	out.Errors = maps.Clone(s.Errors)
	if s.LastHydratedAt != nil {
		t := *s.LastHydratedAt
		out.LastHydratedAt = &t
	}
	return out
}

// reorder rebuilds AllIDs from the visible entries of ByID.
func (s *State) reorder() {
	visible := make([]models.Entry, 0, len(s.ByID))
	for _, e := range s.ByID {
		if !e.IsDeleted {
			visible = append(visible, e)
		}
	}
	models.SortEntries(visible)

	ids := make([]string, len(visible))
	for i, e := range visible {
		ids[i] = e.ID
	}
	s.AllIDs = ids
}
