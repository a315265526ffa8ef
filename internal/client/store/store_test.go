package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/cbtjournal/internal/client/models"
	"github.com/dmitrijs2005/cbtjournal/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

func at(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }

func entry(id string, created int) models.Entry {
	return models.Entry{ID: id, CreatedAt: at(created), UpdatedAt: at(created), Belief: "belief " + id}
}

/*************
 * Fake entries service
 *************/

type fakeService struct {
	listFn    func(ctx context.Context) ([]models.Entry, error)
	createFn  func(ctx context.Context, d models.Entry) (models.Entry, error)
	updateFn  func(ctx context.Context, e models.Entry) (models.Entry, error)
	removeFn  func(ctx context.Context, id string) error
	restoreFn func(ctx context.Context, e models.Entry) (models.Entry, error)

	removeCalls atomic.Int32
}

func (f *fakeService) ListEntries(ctx context.Context) ([]models.Entry, error) {
	return f.listFn(ctx)
}

func (f *fakeService) CreateEntry(ctx context.Context, d models.Entry) (models.Entry, error) {
	return f.createFn(ctx, d)
}

func (f *fakeService) UpdateEntry(ctx context.Context, e models.Entry) (models.Entry, error) {
	if f.updateFn == nil {
		return e, nil
	}
	return f.updateFn(ctx, e)
}

func (f *fakeService) RemoveEntry(ctx context.Context, id string) error {
	f.removeCalls.Add(1)
	if f.removeFn == nil {
		return nil
	}
	return f.removeFn(ctx, id)
}

func (f *fakeService) RestoreEntry(ctx context.Context, e models.Entry) (models.Entry, error) {
	if f.restoreFn == nil {
		return e, nil
	}
	return f.restoreFn(ctx, e)
}

func listing(entries ...models.Entry) func(context.Context) ([]models.Entry, error) {
	return func(context.Context) ([]models.Entry, error) { return entries, nil }
}

func newStore(t *testing.T, svc *fakeService) *Store {
	t.Helper()
	return New(svc, clock.NewManual(base))
}

func hydrated(t *testing.T, svc *fakeService, entries ...models.Entry) *Store {
	t.Helper()
	svc.listFn = listing(entries...)
	s := newStore(t, svc)
	require.NoError(t, s.Hydrate(context.Background()))
	return s
}

func waitPending(t *testing.T, s *Store, id string, kind OpKind) {
	t.Helper()
	require.Eventually(t, func() bool {
		op, ok := s.Snapshot().Pending[id]
		return ok && op.Kind == kind
	}, time.Second, time.Millisecond)
}

/*************
 * Hydrate
 *************/

func TestHydrate_FiltersDeletedAndSorts(t *testing.T) {
	e1 := entry("e1", 10)
	e2 := entry("e2", 20)
	e2.IsDeleted = true
	e3 := entry("e3", 5)

	s := hydrated(t, &fakeService{}, e3, e2, e1)

	st := s.Snapshot()
	assert.Equal(t, []string{"e1", "e3"}, st.AllIDs)
	assert.NotContains(t, st.ByID, "e2")
	assert.False(t, st.IsHydrating)
	require.NotNil(t, st.LastHydratedAt)
	assert.True(t, base.Equal(*st.LastHydratedAt))
	assert.Equal(t, uint64(1), st.HydrateRequestID)
}

func TestHydrate_TieBreaksOnID(t *testing.T) {
	s := hydrated(t, &fakeService{}, entry("b", 1), entry("c", 1), entry("a", 1), entry("z", 2))
	assert.Equal(t, []string{"z", "a", "b", "c"}, s.Snapshot().AllIDs)
}

func TestHydrate_FailureKeepsCacheAndRecordsGlobal(t *testing.T) {
	svc := &fakeService{}
	s := hydrated(t, svc, entry("e1", 1))

	svc.listFn = func(context.Context) ([]models.Entry, error) { return nil, errors.New("disk gone") }
	err := s.Hydrate(context.Background())
	require.Error(t, err)

	st := s.Snapshot()
	assert.Equal(t, []string{"e1"}, st.AllIDs)
	assert.Equal(t, "disk gone", st.Errors[GlobalErrorKey])
	assert.False(t, st.IsHydrating)

	svc.listFn = listing(entry("e1", 1))
	require.NoError(t, s.Hydrate(context.Background()))
	assert.NotContains(t, s.Snapshot().Errors, GlobalErrorKey)
}

type listResult struct {
	entries []models.Entry
	err     error
}

// gatedLister hands each ListEntries call its own channel, in call order.
func gatedLister(n int) (func(context.Context) ([]models.Entry, error), []chan listResult, *atomic.Int32) {
	gates := make([]chan listResult, n)
	for i := range gates {
		gates[i] = make(chan listResult, 1)
	}
	var calls atomic.Int32
	fn := func(context.Context) ([]models.Entry, error) {
		i := calls.Add(1) - 1
		r := <-gates[i]
		return r.entries, r.err
	}
	return fn, gates, &calls
}

func TestHydrate_LastIssuedWins(t *testing.T) {
	for _, reversed := range []bool{false, true} {
		name := "in order"
		if reversed {
			name = "reversed"
		}
		t.Run(name, func(t *testing.T) {
			fn, gates, calls := gatedLister(2)
			s := newStore(t, &fakeService{listFn: fn})
			ctx := context.Background()

			errs := make(chan error, 2)
			go func() { errs <- s.Hydrate(ctx) }()
			require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
			go func() { errs <- s.Hydrate(ctx) }()
			require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
			assert.True(t, s.Snapshot().IsHydrating)

			first := listResult{entries: []models.Entry{entry("old", 1)}}
			second := listResult{entries: []models.Entry{entry("new", 2)}}
			if reversed {
				gates[1] <- second
				require.NoError(t, <-errs)
				gates[0] <- first
				require.NoError(t, <-errs)
			} else {
				gates[0] <- first
				require.NoError(t, <-errs)
				gates[1] <- second
				require.NoError(t, <-errs)
			}

			st := s.Snapshot()
			assert.Equal(t, []string{"new"}, st.AllIDs)
			assert.False(t, st.IsHydrating)
		})
	}
}

func TestHydrate_StaleFailureIsSilent(t *testing.T) {
	fn, gates, calls := gatedLister(2)
	s := newStore(t, &fakeService{listFn: fn})
	ctx := context.Background()

	errs := make(chan error, 2)
	go func() { errs <- s.Hydrate(ctx) }()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	go func() { errs <- s.Hydrate(ctx) }()
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)

	gates[1] <- listResult{entries: []models.Entry{entry("e1", 1)}}
	require.NoError(t, <-errs)
	gates[0] <- listResult{err: errors.New("late failure")}
	require.NoError(t, <-errs)

	st := s.Snapshot()
	assert.Empty(t, st.Errors)
	assert.Equal(t, []string{"e1"}, st.AllIDs)
}

/*************
 * Refresh
 *************/

func TestRefresh_MergesWithoutTouchingPending(t *testing.T) {
	svc := &fakeService{}
	e1 := entry("e1", 10)
	e2 := entry("e2", 20)
	e4 := entry("e4", 40)
	s := hydrated(t, svc, e1, e2, e4)
	ctx := context.Background()

	release := make(chan struct{})
	svc.updateFn = func(_ context.Context, e models.Entry) (models.Entry, error) {
		<-release
		return e, nil
	}
	done := make(chan error, 1)
	go func() {
		_, err := s.Update(ctx, "e1", models.Patch{Belief: models.Ptr("local edit")})
		done <- err
	}()
	waitPending(t, s, "e1", OpUpdate)

	remoteE1 := entry("e1", 10)
	remoteE1.UpdatedAt = at(99)
	remoteE1.Belief = "remote"
	olderE2 := entry("e2", 20)
	olderE2.UpdatedAt = at(1)
	olderE2.Belief = "stale"
	e3 := entry("e3", 30)
	goneE4 := entry("e4", 40)
	goneE4.UpdatedAt = at(50)
	goneE4.IsDeleted = true
	svc.listFn = listing(remoteE1, olderE2, e3, goneE4)

	require.NoError(t, s.Refresh(ctx))

	st := s.Snapshot()
	assert.Equal(t, "local edit", st.ByID["e1"].Belief)
	assert.Equal(t, "belief e2", st.ByID["e2"].Belief)
	assert.Contains(t, st.ByID, "e3")
	assert.NotContains(t, st.ByID, "e4")
	assert.Equal(t, []string{"e3", "e2", "e1"}, st.AllIDs)
	assert.False(t, st.IsHydrating)

	close(release)
	require.NoError(t, <-done)
}

func TestRefresh_TakesFresherAnalysisOnly(t *testing.T) {
	svc := &fakeService{}
	local := entry("e1", 10)
	local.Belief = "local copy"
	s := hydrated(t, svc, local)

	remote := entry("e1", 10)
	remote.Belief = "same version elsewhere"
	remote.AIResponse = &models.AIAnalysis{Payload: []byte(`{"v":1}`), CreatedAt: at(30)}
	svc.listFn = listing(remote)
	require.NoError(t, s.Refresh(context.Background()))

	got := s.Snapshot().ByID["e1"]
	assert.Equal(t, "local copy", got.Belief)
	require.NotNil(t, got.AIResponse)
	assert.JSONEq(t, `{"v":1}`, string(got.AIResponse.Payload))

	// an older analysis does not replace a newer one
	stale := entry("e1", 10)
	stale.AIResponse = &models.AIAnalysis{Payload: []byte(`{"v":0}`), CreatedAt: at(20)}
	svc.listFn = listing(stale)
	require.NoError(t, s.Refresh(context.Background()))
	assert.JSONEq(t, `{"v":1}`, string(s.Snapshot().ByID["e1"].AIResponse.Payload))
}

func TestRefresh_KeepsEntriesMissingFromListing(t *testing.T) {
	svc := &fakeService{}
	s := hydrated(t, svc, entry("e1", 1), entry("e2", 2))

	svc.listFn = listing(entry("e2", 2))
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, []string{"e2", "e1"}, s.Snapshot().AllIDs)
}

func TestRefresh_FailureRecordsGlobal(t *testing.T) {
	svc := &fakeService{}
	s := hydrated(t, svc, entry("e1", 1))

	svc.listFn = func(context.Context) ([]models.Entry, error) { return nil, errors.New("offline") }
	require.Error(t, s.Refresh(context.Background()))

	st := s.Snapshot()
	assert.Equal(t, "offline", st.Errors[GlobalErrorKey])
	assert.Equal(t, []string{"e1"}, st.AllIDs)
}

func TestRefresh_SharesFenceWithHydrate(t *testing.T) {
	fn, gates, calls := gatedLister(2)
	s := newStore(t, &fakeService{listFn: fn})
	ctx := context.Background()

	errs := make(chan error, 2)
	go func() { errs <- s.Hydrate(ctx) }()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	go func() { errs <- s.Refresh(ctx) }()
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)

	gates[1] <- listResult{entries: []models.Entry{entry("fresh", 2)}}
	require.NoError(t, <-errs)
	gates[0] <- listResult{entries: []models.Entry{entry("stale", 1)}}
	require.NoError(t, <-errs)

	st := s.Snapshot()
	assert.Equal(t, []string{"fresh"}, st.AllIDs)
	assert.False(t, st.IsHydrating)
}

/*************
 * Create
 *************/

func TestCreate_SwapsTempID(t *testing.T) {
	svc := &fakeService{}
	s := hydrated(t, svc, entry("e1", 1))

	draft := models.NewDraft("acc", at(5))
	svc.createFn = func(_ context.Context, d models.Entry) (models.Entry, error) {
		st := s.Snapshot()
		assert.Equal(t, OpCreate, st.Pending[d.ID].Kind)
		assert.Equal(t, []string{d.ID, "e1"}, st.AllIDs)

		out := d
		out.ID = "canonical"
		return out, nil
	}

	got, err := s.Create(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, "canonical", got.ID)

	st := s.Snapshot()
	assert.NotContains(t, st.ByID, draft.ID)
	assert.NotContains(t, st.Pending, draft.ID)
	assert.NotContains(t, st.Errors, draft.ID)
	assert.Equal(t, []string{"canonical", "e1"}, st.AllIDs)
}

func TestCreate_FailureRemovesTempID(t *testing.T) {
	svc := &fakeService{}
	s := hydrated(t, svc, entry("e1", 1))

	draft := models.NewDraft("", at(5))
	svc.createFn = func(context.Context, models.Entry) (models.Entry, error) {
		return models.Entry{}, errors.New("disk full")
	}

	_, err := s.Create(context.Background(), draft)
	require.Error(t, err)

	st := s.Snapshot()
	assert.NotContains(t, st.ByID, draft.ID)
	assert.NotContains(t, st.Pending, draft.ID)
	assert.Equal(t, []string{"e1"}, st.AllIDs)
	assert.Equal(t, "disk full", st.Errors[draft.ID])
}

func TestCreate_RejectsInvalidDraft(t *testing.T) {
	s := newStore(t, &fakeService{})

	_, err := s.Create(context.Background(), models.Entry{ID: "no-prefix", CreatedAt: base, UpdatedAt: base})
	require.ErrorIs(t, err, ErrInvalidDraft)

	_, err = s.Create(context.Background(), models.Entry{ID: "tmp-1"})
	require.ErrorIs(t, err, ErrInvalidDraft)

	assert.Empty(t, s.Snapshot().ByID)
}

/*************
 * Update
 *************/

func TestUpdate_SecondCallWhilePendingIsBusy(t *testing.T) {
	svc := &fakeService{}
	s := hydrated(t, svc, entry("e1", 1))
	ctx := context.Background()

	release := make(chan struct{})
	svc.updateFn = func(_ context.Context, e models.Entry) (models.Entry, error) {
		<-release
		return e, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Update(ctx, "e1", models.Patch{Belief: models.Ptr("first")})
		done <- err
	}()
	waitPending(t, s, "e1", OpUpdate)
	before := s.Snapshot()

	_, err := s.Update(ctx, "e1", models.Patch{Belief: models.Ptr("second")})
	require.ErrorIs(t, err, ErrBusy)
	assert.True(t, IsBusy(err))

	after := s.Snapshot()
	assert.Equal(t, before, after)
	assert.Equal(t, "first", after.ByID["e1"].Belief)
	assert.NotContains(t, after.Errors, "e1")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, "first", s.Snapshot().ByID["e1"].Belief)
}

func TestUpdate_MissingID(t *testing.T) {
	s := newStore(t, &fakeService{})
	_, err := s.Update(context.Background(), "ghost", models.Patch{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_FailureRestoresSnapshot(t *testing.T) {
	svc := &fakeService{}
	e1 := entry("e1", 10)
	s := hydrated(t, svc, e1, entry("e3", 5))

	svc.updateFn = func(context.Context, models.Entry) (models.Entry, error) {
		return models.Entry{}, errors.New("update failed")
	}

	_, err := s.Update(context.Background(), "e1", models.Patch{Belief: models.Ptr("new")})
	require.Error(t, err)

	st := s.Snapshot()
	assert.Equal(t, e1, st.ByID["e1"])
	assert.NotContains(t, st.Pending, "e1")
	assert.Contains(t, st.Errors["e1"], "update failed")
}

func TestUpdate_CommitsServiceValue(t *testing.T) {
	svc := &fakeService{}
	s := hydrated(t, svc, entry("e1", 10))

	svc.updateFn = func(_ context.Context, e models.Entry) (models.Entry, error) {
		e.UpdatedAt = at(60)
		return e, nil
	}

	got, err := s.Update(context.Background(), "e1", models.Patch{Energy: models.Ptr("lighter")})
	require.NoError(t, err)
	assert.True(t, at(60).Equal(got.UpdatedAt))

	st := s.Snapshot()
	assert.Equal(t, "lighter", st.ByID["e1"].Energy)
	assert.True(t, at(60).Equal(st.ByID["e1"].UpdatedAt))
	assert.Empty(t, st.Pending)
}

func TestUpdate_SuccessClearsPreviousError(t *testing.T) {
	svc := &fakeService{}
	s := hydrated(t, svc, entry("e1", 10))

	svc.updateFn = func(context.Context, models.Entry) (models.Entry, error) {
		return models.Entry{}, errors.New("boom")
	}
	_, err := s.Update(context.Background(), "e1", models.Patch{})
	require.Error(t, err)

	svc.updateFn = nil
	_, err = s.Update(context.Background(), "e1", models.Patch{})
	require.NoError(t, err)
	assert.NotContains(t, s.Snapshot().Errors, "e1")
}

/*************
 * Remove / Restore
 *************/

func TestRemove_AbsentIsNoop(t *testing.T) {
	svc := &fakeService{}
	s := hydrated(t, svc, entry("e1", 1))

	require.NoError(t, s.Remove(context.Background(), "ghost"))
	assert.Equal(t, int32(0), svc.removeCalls.Load())
}

func TestRemove_SuccessEvicts(t *testing.T) {
	svc := &fakeService{}
	s := hydrated(t, svc, entry("e1", 1), entry("e2", 2))

	svc.removeFn = func(context.Context, string) error {
		st := s.Snapshot()
		assert.True(t, st.ByID["e1"].IsDeleted)
		assert.Equal(t, []string{"e2"}, st.AllIDs)
		assert.Equal(t, OpRemove, st.Pending["e1"].Kind)
		return nil
	}

	require.NoError(t, s.Remove(context.Background(), "e1"))

	st := s.Snapshot()
	assert.NotContains(t, st.ByID, "e1")
	assert.Empty(t, st.Pending)
	assert.Equal(t, []string{"e2"}, st.AllIDs)
}

func TestRemove_FailureRestoresVisibleEntry(t *testing.T) {
	svc := &fakeService{}
	e1 := entry("e1", 1)
	s := hydrated(t, svc, e1, entry("e2", 2))

	svc.removeFn = func(context.Context, string) error { return errors.New("locked") }

	require.Error(t, s.Remove(context.Background(), "e1"))

	st := s.Snapshot()
	assert.Equal(t, e1, st.ByID["e1"])
	assert.Equal(t, []string{"e2", "e1"}, st.AllIDs)
	assert.Equal(t, "locked", st.Errors["e1"])
	assert.Empty(t, st.Pending)
}

func TestRemove_BusyWhilePending(t *testing.T) {
	svc := &fakeService{}
	s := hydrated(t, svc, entry("e1", 1))

	release := make(chan struct{})
	svc.updateFn = func(_ context.Context, e models.Entry) (models.Entry, error) {
		<-release
		return e, nil
	}
	done := make(chan error, 1)
	go func() {
		_, err := s.Update(context.Background(), "e1", models.Patch{})
		done <- err
	}()
	waitPending(t, s, "e1", OpUpdate)

	require.ErrorIs(t, s.Remove(context.Background(), "e1"), ErrBusy)
	assert.Equal(t, int32(0), svc.removeCalls.Load())

	close(release)
	require.NoError(t, <-done)
}

func TestRemove_SupersededFailureKeepsRestore(t *testing.T) {
	svc := &fakeService{}
	e1 := entry("e1", 1)
	s := hydrated(t, svc, e1)
	ctx := context.Background()

	release := make(chan error)
	svc.removeFn = func(context.Context, string) error { return <-release }

	done := make(chan error, 1)
	go func() { done <- s.Remove(ctx, "e1") }()
	waitPending(t, s, "e1", OpRemove)

	restored, err := s.Restore(ctx, e1)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)

	cause := errors.New("remove rejected")
	release <- cause
	err = <-done
	require.ErrorIs(t, err, ErrSuperseded)
	require.ErrorIs(t, err, cause)

	st := s.Snapshot()
	assert.False(t, st.ByID["e1"].IsDeleted)
	assert.Equal(t, []string{"e1"}, st.AllIDs)
	assert.NotContains(t, st.Errors, "e1")
	assert.Empty(t, st.Pending)
}

func TestRemove_SupersededSuccessDoesNotEvict(t *testing.T) {
	svc := &fakeService{}
	e1 := entry("e1", 1)
	s := hydrated(t, svc, e1)
	ctx := context.Background()

	removeRelease := make(chan error)
	svc.removeFn = func(context.Context, string) error { return <-removeRelease }
	restoreRelease := make(chan struct{})
	svc.restoreFn = func(_ context.Context, e models.Entry) (models.Entry, error) {
		<-restoreRelease
		return e, nil
	}

	removed := make(chan error, 1)
	go func() { removed <- s.Remove(ctx, "e1") }()
	waitPending(t, s, "e1", OpRemove)

	restoredCh := make(chan error, 1)
	go func() {
		_, err := s.Restore(ctx, e1)
		restoredCh <- err
	}()
	waitPending(t, s, "e1", OpUpdate)

	removeRelease <- nil
	require.NoError(t, <-removed)
	assert.Contains(t, s.Snapshot().ByID, "e1")

	close(restoreRelease)
	require.NoError(t, <-restoredCh)

	st := s.Snapshot()
	assert.Equal(t, []string{"e1"}, st.AllIDs)
	assert.Empty(t, st.Pending)
}

func TestRestore_InsertsUnknownEntry(t *testing.T) {
	svc := &fakeService{}
	s := hydrated(t, svc, entry("e1", 1))

	trashed := entry("e0", 5)
	trashed.IsDeleted = true
	got, err := s.Restore(context.Background(), trashed)
	require.NoError(t, err)
	assert.False(t, got.IsDeleted)
	assert.Equal(t, []string{"e0", "e1"}, s.Snapshot().AllIDs)
}

func TestRestore_FailureRollsBack(t *testing.T) {
	svc := &fakeService{}
	s := hydrated(t, svc, entry("e1", 1))

	svc.restoreFn = func(context.Context, models.Entry) (models.Entry, error) {
		return models.Entry{}, errors.New("nope")
	}

	trashed := entry("e0", 5)
	trashed.IsDeleted = true
	_, err := s.Restore(context.Background(), trashed)
	require.Error(t, err)

	st := s.Snapshot()
	assert.NotContains(t, st.ByID, "e0")
	assert.Equal(t, []string{"e1"}, st.AllIDs)
	assert.Equal(t, "nope", st.Errors["e0"])
	assert.Empty(t, st.Pending)
}

/*************
 * Errors and observers
 *************/

func TestClearErrors_Idempotent(t *testing.T) {
	svc := &fakeService{}
	s := hydrated(t, svc, entry("e1", 1))

	svc.updateFn = func(context.Context, models.Entry) (models.Entry, error) {
		return models.Entry{}, errors.New("x")
	}
	_, _ = s.Update(context.Background(), "e1", models.Patch{})
	s.RecordGlobalError(errors.New("sync failed"))
	require.Len(t, s.Snapshot().Errors, 2)

	before := s.Snapshot()
	s.ClearErrors()
	s.ClearErrors()

	after := s.Snapshot()
	assert.Empty(t, after.Errors)
	assert.Equal(t, before.ByID, after.ByID)
	assert.Equal(t, before.AllIDs, after.AllIDs)
	assert.Equal(t, before.Pending, after.Pending)
}

func TestRecordGlobalError_NilClears(t *testing.T) {
	s := newStore(t, &fakeService{})
	s.RecordGlobalError(errors.New("x"))
	assert.Equal(t, "x", s.Snapshot().Errors[GlobalErrorKey])

	s.RecordGlobalError(nil)
	assert.NotContains(t, s.Snapshot().Errors, GlobalErrorKey)
}

func TestSubscribe_NotifiesAndUnsubscribes(t *testing.T) {
	svc := &fakeService{listFn: listing(entry("e1", 1))}
	s := newStore(t, svc)

	var mu sync.Mutex
	var seen []State
	unsub := s.Subscribe(func(st State) {
		mu.Lock()
		seen = append(seen, st)
		mu.Unlock()
	})
	s.Subscribe(func(State) { panic("bad observer") })

	require.NoError(t, s.Hydrate(context.Background()))

	mu.Lock()
	require.Len(t, seen, 2)
	assert.True(t, seen[0].IsHydrating)
	assert.False(t, seen[1].IsHydrating)
	assert.Equal(t, []string{"e1"}, seen[1].AllIDs)
	mu.Unlock()

	unsub()
	s.RecordGlobalError(errors.New("x"))
	mu.Lock()
	assert.Len(t, seen, 2)
	mu.Unlock()
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := hydrated(t, &fakeService{}, entry("e1", 1))

	st := s.Snapshot()
	st.AllIDs[0] = "mutated"
	st.ByID["x"] = models.Entry{}
	st.Errors["x"] = "y"

	fresh := s.Snapshot()
	assert.Equal(t, []string{"e1"}, fresh.AllIDs)
	assert.NotContains(t, fresh.ByID, "x")
	assert.Empty(t, fresh.Errors)
}

func TestVisible_FollowsOrder(t *testing.T) {
	s := hydrated(t, &fakeService{}, entry("e3", 5), entry("e1", 10))
	vis := s.Visible()
	require.Len(t, vis, 2)
	assert.Equal(t, "e1", vis[0].ID)
	assert.Equal(t, "e3", vis[1].ID)
}

func TestIndependentIDsMutateConcurrently(t *testing.T) {
	svc := &fakeService{}
	s := hydrated(t, svc, entry("e1", 1), entry("e2", 2))

	release := make(chan struct{})
	svc.updateFn = func(_ context.Context, e models.Entry) (models.Entry, error) {
		<-release
		return e, nil
	}

	var wg sync.WaitGroup
	for _, id := range []string{"e1", "e2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(context.Background(), id, models.Patch{Energy: models.Ptr("x")})
			assert.NoError(t, err)
		}()
	}
	waitPending(t, s, "e1", OpUpdate)
	waitPending(t, s, "e2", OpUpdate)
	close(release)
	wg.Wait()

	assert.Empty(t, s.Snapshot().Pending)
}
