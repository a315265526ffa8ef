// Package rpc is the wire contract between the journal client and backend.
//
// The gRPC service cbtjournal.Entries (cbtjournal.proto) is registered by
// hand rather than generated: requests and responses are protobuf
// well-known wrappers (BytesValue, StringValue, Empty) whose byte payloads
// hold the JSON DTOs declared here. Both sides convert DTOs to their own
// models at the edge.
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

var ErrEmptyPayload = errors.New("empty payload")

// Entry is the transport form of a journal entry. AccountID is never sent by
// clients: the server derives it from the access token.
type Entry struct {
	ID             string           `json:"id"`
	AccountID      string           `json:"account_id,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	IsDeleted      bool             `json:"is_deleted"`
	Adversity      string           `json:"adversity"`
	Belief         string           `json:"belief"`
	Consequence    string           `json:"consequence"`
	Dispute        string           `json:"dispute"`
	Energy         string           `json:"energy"`
	AIResponse     *AIAnalysis      `json:"ai_response,omitempty"`
	DisputeHistory []DisputeAttempt `json:"dispute_history,omitempty"`
}

type AIAnalysis struct {
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type DisputeAttempt struct {
	Dispute   string    `json:"dispute"`
	CreatedAt time.Time `json:"created_at"`
}

type EntryList struct {
	Entries []Entry `json:"entries"`
}

// RemoveRequest tombstones ID. UpdatedAt is the deletion time and takes part
// in last-writer-wins like any other write.
type RemoveRequest struct {
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AttachAnalysisRequest struct {
	EntryID string          `json:"entry_id"`
	Payload json.RawMessage `json:"payload"`
}

// EventTypeAIAnalysis announces that an entry received a fresh analysis.
const EventTypeAIAnalysis = "ai_analysis"

// Event is streamed over the realtime websocket as a JSON text frame.
type Event struct {
	Type    string `json:"type"`
	EntryID string `json:"entry_id"`
}

// Encode marshals v into a BytesValue.
func Encode(v any) (*wrapperspb.BytesValue, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return wrapperspb.Bytes(b), nil
}

// Decode unmarshals the payload of msg into v.
func Decode(msg *wrapperspb.BytesValue, v any) error {
	if msg == nil || len(msg.GetValue()) == 0 {
		return ErrEmptyPayload
	}
	if err := json.Unmarshal(msg.GetValue(), v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
