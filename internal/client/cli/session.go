package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/cbtjournal/internal/client/store"
)

func (a *App) Sync(ctx context.Context) error {
	if a.signal.Get() == nil {
		fmt.Fprintln(a.out, "Signed out: entries stay on this device until you sign in.")
		return nil
	}
	if err := a.syncer.SyncNow(ctx); err != nil {
		return a.report("sync", err)
	}
	fmt.Fprintln(a.out, "Synced.")
	return nil
}

func (a *App) Errors(ctx context.Context) error {
	errs := a.store.Snapshot().Errors
	if len(errs) == 0 {
		fmt.Fprintln(a.out, "No errors.")
		return nil
	}
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		label := k
		if k != store.GlobalErrorKey {
			label = shortID(k)
		}
		fmt.Fprintf(a.out, "%-8s  %s\n", label, errs[k])
	}
	return nil
}

func (a *App) Clear(ctx context.Context) error {
	a.store.ClearErrors()
	fmt.Fprintln(a.out, "Errors cleared.")
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	sess := a.signal.Get()
	if sess == nil {
		fmt.Fprintln(a.out, "Signed out")
	} else {
		fmt.Fprintf(a.out, "Account:  %s\n", sess.AccountID)
		fmt.Fprintf(a.out, "Analysis: %t\n", sess.Entitled)
	}
	if m := a.Mode(); m != "" {
		fmt.Fprintf(a.out, "Mode:     %s\n", m)
	}

	last, err := a.syncer.LastSyncedAt(ctx)
	switch {
	case err != nil:
		a.logger.Warn(ctx, "failed to read last sync time", "error", err)
	case last.IsZero():
		fmt.Fprintln(a.out, "Synced:   never")
	default:
		fmt.Fprintf(a.out, "Synced:   %s\n", last.Local().Format(timeLayout))
	}
	return nil
}

// Export asks the backend for a snapshot of the account's journal and
// prints where it was stored.
func (a *App) Export(ctx context.Context) error {
	sess := a.signal.Get()
	if sess == nil {
		fmt.Fprintln(a.out, "Sign in to export your journal.")
		return nil
	}

	c, err := a.newExporter(sess.AccountID, sess.AccessToken)
	if err != nil {
		return a.report("export", err)
	}
	defer c.Close()

	key, err := c.Export(ctx)
	if err != nil {
		return a.report("export", err)
	}
	fmt.Fprintf(a.out, "Exported to %s\n", key)
	return nil
}
