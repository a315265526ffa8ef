package grpc

import (
	"github.com/dmitrijs2005/cbtjournal/internal/rpc"
	"github.com/dmitrijs2005/cbtjournal/internal/server/models"
)

func toWire(e *models.Entry) rpc.Entry {
	w := rpc.Entry{
		ID:          e.ID,
		AccountID:   e.AccountID,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
		IsDeleted:   e.Deleted,
		Adversity:   e.Adversity,
		Belief:      e.Belief,
		Consequence: e.Consequence,
		Dispute:     e.Dispute,
		Energy:      e.Energy,
	}
	if e.AI != nil {
		w.AIResponse = &rpc.AIAnalysis{Payload: e.AI.Payload, CreatedAt: e.AI.CreatedAt}
	}
	for _, d := range e.DisputeHistory {
		w.DisputeHistory = append(w.DisputeHistory, rpc.DisputeAttempt{Dispute: d.Dispute, CreatedAt: d.CreatedAt})
	}
	return w
}

// fromWire ignores AccountID: the account always comes from the token.
func fromWire(w rpc.Entry) *models.Entry {
	e := &models.Entry{
		ID:          w.ID,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
		Deleted:     w.IsDeleted,
		Adversity:   w.Adversity,
		Belief:      w.Belief,
		Consequence: w.Consequence,
		Dispute:     w.Dispute,
		Energy:      w.Energy,
	}
	if w.AIResponse != nil {
		e.AI = &models.AIAnalysis{Payload: w.AIResponse.Payload, CreatedAt: w.AIResponse.CreatedAt}
	}
	for _, d := range w.DisputeHistory {
		e.DisputeHistory = append(e.DisputeHistory, models.DisputeAttempt{Dispute: d.Dispute, CreatedAt: d.CreatedAt})
	}
	return e
}
