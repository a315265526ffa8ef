package cloud

import (
	"github.com/dmitrijs2005/cbtjournal/internal/client/models"
	"github.com/dmitrijs2005/cbtjournal/internal/rpc"
)

func toWire(e models.Entry) rpc.Entry {
	out := rpc.Entry{
		ID:          e.ID,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
		IsDeleted:   e.IsDeleted,
		Adversity:   e.Adversity,
		Belief:      e.Belief,
		Consequence: e.Consequence,
		Dispute:     e.Dispute,
		Energy:      e.Energy,
	}
	if e.AIResponse != nil {
		out.AIResponse = &rpc.AIAnalysis{Payload: e.AIResponse.Payload, CreatedAt: e.AIResponse.CreatedAt}
	}
	for _, d := range e.DisputeHistory {
		out.DisputeHistory = append(out.DisputeHistory, rpc.DisputeAttempt{Dispute: d.Dispute, CreatedAt: d.CreatedAt})
	}
	return out
}

// fromWire tags the entry with accountID; the wire form does not carry the
// owner back to the client.
func fromWire(e rpc.Entry, accountID string) models.Entry {
	out := models.Entry{
		ID:          e.ID,
		AccountID:   accountID,
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
		IsDeleted:   e.IsDeleted,
		Adversity:   e.Adversity,
		Belief:      e.Belief,
		Consequence: e.Consequence,
		Dispute:     e.Dispute,
		Energy:      e.Energy,
	}
	if e.AIResponse != nil {
		out.AIResponse = &models.AIAnalysis{Payload: e.AIResponse.Payload, CreatedAt: e.AIResponse.CreatedAt.UTC()}
	}
	for _, d := range e.DisputeHistory {
		out.DisputeHistory = append(out.DisputeHistory, models.DisputeAttempt{Dispute: d.Dispute, CreatedAt: d.CreatedAt.UTC()})
	}
	return out
}
