// Package models holds the backend's persisted shapes.
package models

import (
	"encoding/json"
	"time"
)

// Entry is one journal entry as stored for an account. Deleted entries are
// kept as tombstones so a stale write cannot bring them back.
type Entry struct {
	ID             string
	AccountID      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Deleted        bool
	Adversity      string
	Belief         string
	Consequence    string
	Dispute        string
	Energy         string
	AI             *AIAnalysis
	DisputeHistory []DisputeAttempt
}

// AIAnalysis is the opaque analysis payload and the time it was produced.
type AIAnalysis struct {
	Payload   json.RawMessage
	CreatedAt time.Time
}

type DisputeAttempt struct {
	Dispute   string    `json:"dispute"`
	CreatedAt time.Time `json:"created_at"`
}
