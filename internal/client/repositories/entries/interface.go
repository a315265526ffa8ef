package entries

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cbtjournal/internal/client/models"
)

// Repository describes the local entry store used by the entries service and
// the sync orchestrator.
type Repository interface {
	// GetAll returns entries that are not soft-deleted, in no particular order.
	GetAll(ctx context.Context) ([]models.Entry, error)

	// GetAllIncludingDeleted returns every row, tombstones included.
	GetAllIncludingDeleted(ctx context.Context) ([]models.Entry, error)

	// GetByID returns common.ErrorNotFound when the row does not exist.
	GetByID(ctx context.Context, id string) (models.Entry, error)

	// Add inserts a new row. The id must not exist yet.
	Add(ctx context.Context, e models.Entry) error

	// Put inserts or fully replaces a row.
	Put(ctx context.Context, e models.Entry) error

	// Update applies patch to an existing row and returns the stored result.
	Update(ctx context.Context, id string, patch models.Patch) (models.Entry, error)

	// HardDelete removes the row physically. Missing rows are not an error.
	HardDelete(ctx context.Context, id string) error

	// MarkClean clears the dirty flag, but only if the row still carries
	// updatedAt, so a write that raced the push stays dirty.
	MarkClean(ctx context.Context, id string, updatedAt time.Time) error
}
