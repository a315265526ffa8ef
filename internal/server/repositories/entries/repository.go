package entries

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cbtjournal/internal/server/models"
)

type Repository interface {
	ListByAccount(ctx context.Context, accountID string) ([]*models.Entry, error)
	Upsert(ctx context.Context, entry *models.Entry) (*models.Entry, error)
	Tombstone(ctx context.Context, accountID, id string, deletedAt time.Time) error
	SetAnalysis(ctx context.Context, accountID, id string, ai models.AIAnalysis) (*models.Entry, error)
}
