package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/cbtjournal/internal/client/models"
	"github.com/dmitrijs2005/cbtjournal/internal/client/store"
)

var (
	errNoMatch   = errors.New("no entry matches")
	errAmbiguous = errors.New("id prefix is ambiguous")
)

// match returns the entry whose id equals or uniquely starts with ref.
func match(list []models.Entry, ref string) (models.Entry, error) {
	var found []models.Entry
	for _, e := range list {
		if e.ID == ref {
			return e, nil
		}
		if strings.HasPrefix(e.ID, ref) {
			found = append(found, e)
		}
	}
	switch len(found) {
	case 0:
		return models.Entry{}, fmt.Errorf("%w %q", errNoMatch, ref)
	case 1:
		return found[0], nil
	default:
		return models.Entry{}, fmt.Errorf("%w: %q", errAmbiguous, ref)
	}
}

func (a *App) resolve(ref string) (models.Entry, error) {
	return match(a.store.Visible(), ref)
}

func (a *App) deleted(ctx context.Context) ([]models.Entry, error) {
	rows, err := a.local.GetAllIncludingDeleted(ctx)
	if err != nil {
		return nil, err
	}
	rows = slices.DeleteFunc(rows, func(e models.Entry) bool { return !e.IsDeleted })
	models.SortEntries(rows)
	return rows, nil
}

// report prints err for the user; store rejections get a friendlier line.
func (a *App) report(action string, err error) error {
	switch {
	case store.IsBusy(err):
		fmt.Fprintf(a.out, "Cannot %s: the entry is still being saved, try again.\n", action)
	case errors.Is(err, store.ErrSuperseded):
		fmt.Fprintf(a.out, "%s failed, a newer change took over: %v\n", action, err)
	default:
		fmt.Fprintf(a.out, "Error: %v\n", err)
	}
	return err
}

func (a *App) List(ctx context.Context) error {
	st := a.store.Snapshot()
	if st.IsHydrating && len(st.AllIDs) == 0 {
		fmt.Fprintln(a.out, "Loading...")
		return nil
	}
	if len(st.AllIDs) == 0 {
		fmt.Fprintln(a.out, "No entries yet. Use 'add' to write one.")
		return nil
	}
	for _, id := range st.AllIDs {
		printListLine(a.out, st.ByID[id], st)
	}
	return nil
}

func (a *App) Trash(ctx context.Context) error {
	rows, err := a.deleted(ctx)
	if err != nil {
		return a.report("list trash", err)
	}
	if len(rows) == 0 {
		fmt.Fprintln(a.out, "Trash is empty.")
		return nil
	}
	st := a.store.Snapshot()
	for _, e := range rows {
		printListLine(a.out, e, st)
	}
	return nil
}

func (a *App) Show(ctx context.Context, ref string) error {
	e, err := a.resolve(ref)
	if err != nil {
		return a.report("show", err)
	}
	printEntry(a.out, e, a.store.Snapshot())

	if e.AIResponse == nil {
		a.watchAnalysis(ctx, e.ID)
	}
	return nil
}

// watchAnalysis follows the analysis of the shown entry. Only entitled
// sessions get analyses, so nobody else waits for one.
func (a *App) watchAnalysis(ctx context.Context, id string) {
	sess := a.signal.Get()
	if sess == nil || !sess.Entitled {
		return
	}

	unwatch := a.syncer.WatchAIAnalysis(id, func() {
		go func() {
			e, err := a.syncer.RefreshEntry(ctx, id)
			if err != nil {
				a.logger.Warn(ctx, "failed to load analysis", "entry", id, "error", err)
				return
			}
			if e.AIResponse == nil {
				return
			}
			fmt.Fprintf(a.out, "\nAI analysis for %s is ready, 'show %s' to read it.\n", shortID(id), shortID(id))
		}()
	})

	a.mu.Lock()
	prev := a.unwatch
	a.unwatch = unwatch
	a.mu.Unlock()
	if prev != nil {
		prev()
	}
}

func (a *App) Add(ctx context.Context) error {
	sess := a.signal.Get()
	draft := models.NewDraft(sess.ID(), a.clock.Now())

	prompts := []struct {
		label string
		dst   *string
	}{
		{"Adversity: what happened?", &draft.Adversity},
		{"Belief: what did you tell yourself?", &draft.Belief},
		{"Consequence: how did you feel and act?", &draft.Consequence},
		{"Dispute: what is a more accurate view? (optional)", &draft.Dispute},
		{"Energy: how do you feel now? (optional)", &draft.Energy},
	}
	for _, p := range prompts {
		v, err := GetSimpleText(a.reader, p.label, a.out)
		if err != nil {
			return a.report("add", err)
		}
		*p.dst = v
	}
	if draft.Adversity == "" && draft.Belief == "" {
		fmt.Fprintln(a.out, "Nothing to save.")
		return nil
	}

	created, err := a.store.Create(ctx, draft)
	if err != nil {
		return a.report("add", err)
	}
	fmt.Fprintf(a.out, "Created %s\n", shortID(created.ID))
	a.kick(ctx)
	return nil
}

func (a *App) Edit(ctx context.Context, ref string) error {
	e, err := a.resolve(ref)
	if err != nil {
		return a.report("edit", err)
	}
	fmt.Fprintln(a.out, "Enter keeps a value, '-' clears it.")

	var patch models.Patch
	fields := []struct {
		label string
		cur   string
		dst   **string
	}{
		{"Adversity", e.Adversity, &patch.Adversity},
		{"Belief", e.Belief, &patch.Belief},
		{"Consequence", e.Consequence, &patch.Consequence},
		{"Energy", e.Energy, &patch.Energy},
	}
	changed := false
	for _, f := range fields {
		v, ok, err := GetEdited(a.reader, f.label, f.cur, a.out)
		if err != nil {
			return a.report("edit", err)
		}
		if ok {
			*f.dst = models.Ptr(v)
			changed = true
		}
	}
	if !changed {
		fmt.Fprintln(a.out, "No changes.")
		return nil
	}

	if _, err := a.store.Update(ctx, e.ID, patch); err != nil {
		return a.report("edit", err)
	}
	fmt.Fprintf(a.out, "Updated %s\n", shortID(e.ID))
	a.kick(ctx)
	return nil
}

// Dispute replaces the entry's dispute. The replaced text moves into the
// dispute history.
func (a *App) Dispute(ctx context.Context, ref string) error {
	e, err := a.resolve(ref)
	if err != nil {
		return a.report("dispute", err)
	}
	if e.Dispute != "" {
		fmt.Fprintf(a.out, "Current dispute: %s\n", e.Dispute)
	}
	next, err := GetSimpleText(a.reader, "New dispute", a.out)
	if err != nil {
		return a.report("dispute", err)
	}
	if next == "" || next == e.Dispute {
		fmt.Fprintln(a.out, "No changes.")
		return nil
	}

	patch := models.Patch{Dispute: models.Ptr(next)}
	if e.Dispute != "" {
		patch.AppendDispute = &models.DisputeAttempt{Dispute: e.Dispute, CreatedAt: a.clock.Now()}
	}
	if _, err := a.store.Update(ctx, e.ID, patch); err != nil {
		return a.report("dispute", err)
	}
	fmt.Fprintf(a.out, "Dispute recorded for %s\n", shortID(e.ID))
	a.kick(ctx)
	return nil
}

func (a *App) Remove(ctx context.Context, ref string) error {
	e, err := a.resolve(ref)
	if err != nil {
		return a.report("remove", err)
	}
	if err := a.store.Remove(ctx, e.ID); err != nil {
		return a.report("remove", err)
	}
	fmt.Fprintf(a.out, "Moved %s to trash\n", shortID(e.ID))
	a.kick(ctx)
	return nil
}

func (a *App) Restore(ctx context.Context, ref string) error {
	rows, err := a.deleted(ctx)
	if err != nil {
		return a.report("restore", err)
	}
	e, err := match(rows, ref)
	if err != nil {
		return a.report("restore", err)
	}
	if _, err := a.store.Restore(ctx, e); err != nil {
		return a.report("restore", err)
	}
	fmt.Fprintf(a.out, "Restored %s\n", shortID(e.ID))
	a.kick(ctx)
	return nil
}
