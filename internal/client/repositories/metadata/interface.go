// Package metadata keeps small key/value facts about the local database that
// must survive restarts, such as which account last owned it and when it was
// last synchronised.
package metadata

import "context"

const (
	KeyLastAccount  = "last_account_id"
	KeyLastSyncedAt = "last_synced_at"
)

// Repository is a string key/value store.
type Repository interface {
	// Get reports ok=false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
