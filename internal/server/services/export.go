package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cbtjournal/internal/server/models"
	"github.com/google/uuid"
)

type exportDocument struct {
	AccountID  string        `json:"account_id"`
	ExportedAt time.Time     `json:"exported_at"`
	Entries    []exportEntry `json:"entries"`
}

type exportEntry struct {
	ID             string                  `json:"id"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
	Adversity      string                  `json:"adversity"`
	Belief         string                  `json:"belief"`
	Consequence    string                  `json:"consequence"`
	Dispute        string                  `json:"dispute"`
	Energy         string                  `json:"energy"`
	AIAnalysis     json.RawMessage         `json:"ai_analysis,omitempty"`
	DisputeHistory []models.DisputeAttempt `json:"dispute_history,omitempty"`
}

// ExportKey returns a fresh object key under the account's export prefix.
func ExportKey(accountID string, d time.Time) string {
	return fmt.Sprintf("exports/%s/%d/%02d/%02d/%v.json", accountID, d.Year(), d.Month(), d.Day(), uuid.New())
}

// Export writes a JSON snapshot of the account's live entries to object
// storage and returns the object key.
func (s *EntryService) Export(ctx context.Context, accountID string) (string, error) {
	if s.uploader == nil {
		return "", fmt.Errorf("export: %w", ErrExportDisabled)
	}

	all, err := s.repomanager.Entries(s.db).ListByAccount(ctx, accountID)
	if err != nil {
		return "", err
	}

	now := s.clock.Now().UTC()
	doc := exportDocument{AccountID: accountID, ExportedAt: now, Entries: []exportEntry{}}
	for _, e := range all {
		if e.Deleted {
			continue
		}
		item := exportEntry{
			ID: e.ID, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt,
			Adversity: e.Adversity, Belief: e.Belief, Consequence: e.Consequence,
			Dispute: e.Dispute, Energy: e.Energy, DisputeHistory: e.DisputeHistory,
		}
		if e.AI != nil {
			item.AIAnalysis = e.AI.Payload
		}
		doc.Entries = append(doc.Entries, item)
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode export: %w", err)
	}

	key := ExportKey(accountID, now)
	if err := s.uploader.Upload(ctx, key, body, "application/json"); err != nil {
		return "", fmt.Errorf("upload export: %w", err)
	}

	s.logger.Info(ctx, "journal exported", "account", accountID, "key", key, "entries", len(doc.Entries))
	return key, nil
}
