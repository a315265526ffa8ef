// Package models defines the journal entry model shared by the local store,
// the cloud client and the in-memory optimistic store.
package models

import (
	"encoding/json"
	"time"
)

// Entry is one journal record. It is persisted locally, mirrored to the
// backend and reconciled by last-writer-wins on UpdatedAt.
type Entry struct {
	// ID is the stable identifier. Drafts carry a temporary id until the
	// entries service assigns the canonical one.
	ID string `json:"id"`

	// AccountID is the owning account; "" means not yet claimed.
	AccountID string `json:"account_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is refreshed on every authoritative write and is the only
	// conflict-resolution signal.
	UpdatedAt time.Time `json:"updated_at"`

	// IsDeleted marks a soft-deleted entry.
	IsDeleted bool `json:"is_deleted"`

	Adversity   string `json:"adversity"`
	Belief      string `json:"belief"`
	Consequence string `json:"consequence"`
	Dispute     string `json:"dispute"`
	Energy      string `json:"energy"`

	AIResponse     *AIAnalysis      `json:"ai_response,omitempty"`
	DisputeHistory []DisputeAttempt `json:"dispute_history,omitempty"`

	// Dirty is local-only: the row changed since it was last pushed.
	Dirty bool `json:"-"`
}

// AIAnalysis is the opaque result of the analysis service. CreatedAt is
// compared independently of the entry's UpdatedAt.
type AIAnalysis struct {
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// DisputeAttempt is an earlier dispute, kept in append-only history.
type DisputeAttempt struct {
	Dispute   string    `json:"dispute"`
	CreatedAt time.Time `json:"created_at"`
}
