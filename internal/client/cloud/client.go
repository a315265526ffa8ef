// Package cloud talks to the remote journal backend. A Client is bound to a
// single account, identified by the access token it was built with.
package cloud

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/cbtjournal/internal/client/models"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
)

// Client is the remote store as seen by the sync orchestrator.
type Client interface {
	// FetchAll returns every entry of the account, tombstones included.
	FetchAll(ctx context.Context) ([]models.Entry, error)

	// Upsert writes e unless the backend holds a newer version, in which case
	// it returns common.ErrVersionConflict.
	Upsert(ctx context.Context, e models.Entry) (models.Entry, error)

	// Remove tombstones id as of deletedAt.
	Remove(ctx context.Context, id string, deletedAt time.Time) error

	Close() error
}

// Exporter is implemented by clients that can ask the backend for an account
// snapshot. It returns the storage key of the export.
type Exporter interface {
	Export(ctx context.Context) (string, error)
}

// Factory builds a Client for the account authenticated by accessToken.
type Factory func(accountID, accessToken string) (Client, error)
