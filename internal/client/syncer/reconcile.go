package syncer

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/cbtjournal/internal/client/cloud"
	"github.com/dmitrijs2005/cbtjournal/internal/client/models"
	"github.com/dmitrijs2005/cbtjournal/internal/common"
)

type PullStats struct {
	Fetched   int
	Inserted  int
	Updated   int
	AIUpdated int
}

type PushStats struct {
	Upserted  int
	Removed   int
	Conflicts int
}

func claimPatch(accountID string) models.Patch {
	return models.Patch{AccountID: &accountID, Dirty: models.Ptr(true)}
}

// Pull fetches every remote entry of the bound account into the local
// database. Rows written by Pull are clean.
func (o *Orchestrator) Pull(ctx context.Context) (PullStats, error) {
	client, accountID := o.active()
	if client == nil {
		return PullStats{}, ErrNoAccount
	}
	return o.pull(ctx, client, accountID)
}

func (o *Orchestrator) pull(ctx context.Context, client cloud.Client, accountID string) (PullStats, error) {
	var stats PullStats

	remote, err := client.FetchAll(ctx)
	if err != nil {
		return stats, fmt.Errorf("pull: %w", err)
	}
	stats.Fetched = len(remote)

	var errs []error
	for _, r := range remote {
		if err := o.merge(ctx, r, accountID, &stats); err != nil {
			errs = append(errs, fmt.Errorf("pull %s: %w", r.ID, err))
		}
	}
	return stats, errors.Join(errs...)
}

// merge writes one remote row into the local database: missing rows are
// inserted, strictly newer ones replace the local copy, and a newer analysis
// alone only moves the analysis.
func (o *Orchestrator) merge(ctx context.Context, r models.Entry, accountID string, stats *PullStats) error {
	r.AccountID = accountID
	r.Dirty = false

	local, err := o.local.GetByID(ctx, r.ID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		if err := o.local.Add(ctx, r); err != nil {
			return err
		}
		stats.Inserted++

	case err != nil:
		return err

	case r.NewerThan(local):
		if err := o.local.Put(ctx, r); err != nil {
			return err
		}
		stats.Updated++

	case r.AINewerThan(local):
		// Only the analysis moves; local edits to the entry survive.
		if _, err := o.local.Update(ctx, r.ID, models.Patch{AIResponse: r.AIResponse}); err != nil {
			return err
		}
		stats.AIUpdated++
	}
	return nil
}

// RefreshEntry loads the backend copy of a single entry with the same rules
// as a pass and refreshes the store, without pushing anything. It waits for
// an in-flight pass rather than skipping, so the returned row is at least as
// fresh as the backend was when the call started.
func (o *Orchestrator) RefreshEntry(ctx context.Context, id string) (models.Entry, error) {
	o.accountMu.Lock()
	defer o.accountMu.Unlock()

	client, accountID := o.active()
	if client == nil {
		return models.Entry{}, ErrNoAccount
	}

	remote, err := client.FetchAll(ctx)
	if err != nil {
		return models.Entry{}, fmt.Errorf("refresh %s: %w", id, err)
	}
	i := slices.IndexFunc(remote, func(e models.Entry) bool { return e.ID == id })
	if i < 0 {
		return models.Entry{}, fmt.Errorf("refresh %s: %w", id, common.ErrorNotFound)
	}

	var stats PullStats
	if err := o.merge(ctx, remote[i], accountID, &stats); err != nil {
		return models.Entry{}, fmt.Errorf("refresh %s: %w", id, err)
	}
	if err := o.store.Refresh(ctx); err != nil {
		return models.Entry{}, err
	}
	return o.local.GetByID(ctx, id)
}

// Push sends every local row owned by the bound account, tombstones as
// removals. A row the backend already holds a newer version of is skipped.
func (o *Orchestrator) Push(ctx context.Context) (PushStats, error) {
	client, accountID := o.active()
	if client == nil {
		return PushStats{}, ErrNoAccount
	}
	return o.push(ctx, client, accountID)
}

func (o *Orchestrator) push(ctx context.Context, client cloud.Client, accountID string) (PushStats, error) {
	var stats PushStats

	rows, err := o.local.GetAllIncludingDeleted(ctx)
	if err != nil {
		return stats, fmt.Errorf("push: %w", err)
	}

	var errs []error
	for _, row := range rows {
		if row.AccountID != accountID {
			continue
		}

		if row.IsDeleted {
			err = client.Remove(ctx, row.ID, row.UpdatedAt)
		} else {
			_, err = client.Upsert(ctx, row)
		}

		switch {
		case errors.Is(err, common.ErrVersionConflict):
			stats.Conflicts++
			o.logger.Info(ctx, "remote holds a newer version", "entry", row.ID)
			continue
		case err != nil:
			errs = append(errs, fmt.Errorf("push %s: %w", row.ID, err))
			continue
		}

		if row.IsDeleted {
			stats.Removed++
		} else {
			stats.Upserted++
		}
		if row.Dirty {
			if err := o.local.MarkClean(ctx, row.ID, row.UpdatedAt); err != nil {
				errs = append(errs, fmt.Errorf("push %s: %w", row.ID, err))
			}
		}
	}
	return stats, errors.Join(errs...)
}
