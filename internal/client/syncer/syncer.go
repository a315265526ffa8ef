// Package syncer reconciles the local journal database with the backend and
// keeps the optimistic store in step with the result.
//
// A sync pass pulls remote entries (last-writer-wins on UpdatedAt, with the
// AI analysis compared on its own timestamp), pushes every local row owned by
// the signed-in account, then refreshes the store. Passes are single-flight
// and, unless forced, throttled by a cooldown window. Account changes purge
// rows of other accounts, claim unowned rows and re-hydrate the store.
package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/cbtjournal/internal/client/account"
	"github.com/dmitrijs2005/cbtjournal/internal/client/cloud"
	"github.com/dmitrijs2005/cbtjournal/internal/client/realtime"
	"github.com/dmitrijs2005/cbtjournal/internal/client/repositories/entries"
	"github.com/dmitrijs2005/cbtjournal/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/cbtjournal/internal/clock"
	"github.com/dmitrijs2005/cbtjournal/internal/logging"
)

const DefaultCooldown = 5 * time.Second

var ErrNoAccount = errors.New("no signed-in account")

// Hydrator is the part of the optimistic store the orchestrator drives. Its
// methods run under the orchestrator's account lock, so store observers must
// not call back into the orchestrator synchronously.
type Hydrator interface {
	Hydrate(ctx context.Context) error
	Refresh(ctx context.Context) error
	RecordGlobalError(err error)
}

// RealtimeSubscriber delivers per-entry analysis events.
type RealtimeSubscriber interface {
	Subscribe(entryID string, fn func(realtime.Event)) func()
}

type Option func(*Orchestrator)

func WithClock(c clock.Clock) Option { return func(o *Orchestrator) { o.clock = c } }

func WithLogger(l logging.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

func WithCooldown(d time.Duration) Option { return func(o *Orchestrator) { o.cooldown = d } }

func WithRealtime(r RealtimeSubscriber) Option { return func(o *Orchestrator) { o.realtime = r } }

// WithAccountSignal makes Start follow the signal for account changes.
func WithAccountSignal(s *account.Signal) Option { return func(o *Orchestrator) { o.signal = s } }

// WithMetadata persists the last account and sync time across restarts.
func WithMetadata(m metadata.Repository) Option { return func(o *Orchestrator) { o.meta = m } }

type Orchestrator struct {
	local    entries.Repository
	newCloud cloud.Factory
	store    Hydrator

	clock    clock.Clock
	logger   logging.Logger
	cooldown time.Duration
	realtime RealtimeSubscriber
	signal   *account.Signal
	meta     metadata.Repository

	// accountMu serialises account transitions with sync passes and single
	// entry refreshes: no local write happens for an account that is no
	// longer bound.
	accountMu sync.Mutex
	started   bool

	mu          sync.Mutex
	session     *account.Session
	cloud       cloud.Client
	lastPass    time.Time
	baseCtx     context.Context
	cancel      context.CancelFunc
	closed      bool
	watches     map[int]func()
	nextWatch   int
	unsubSignal func()

	// background tracks passes started by realtime events.
	background sync.WaitGroup

	syncing atomic.Bool
	skipped atomic.Int64
}

func New(local entries.Repository, newCloud cloud.Factory, st Hydrator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		local:    local,
		newCloud: newCloud,
		store:    st,
		clock:    clock.System{},
		logger:   logging.Nop{},
		cooldown: DefaultCooldown,
		watches:  map[int]func(){},
	}
	o.baseCtx, o.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("module", "syncer")
	return o
}

// Account returns the account the orchestrator is currently bound to.
func (o *Orchestrator) Account() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.ID()
}

// SkippedPasses counts Sync calls that did not run a pass.
func (o *Orchestrator) SkippedPasses() int64 {
	return o.skipped.Load()
}

func (o *Orchestrator) active() (cloud.Client, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cloud, o.session.ID()
}

// Sync runs a pass unless one is already running or the previous one started
// less than the cooldown ago. Skipped calls return nil.
func (o *Orchestrator) Sync(ctx context.Context) error {
	return o.run(ctx, true)
}

// SyncNow runs a pass ignoring the cooldown. It is still single-flight.
func (o *Orchestrator) SyncNow(ctx context.Context) error {
	return o.run(ctx, false)
}

// OnForeground is the trigger for the app regaining focus or connectivity.
func (o *Orchestrator) OnForeground(ctx context.Context) error {
	return o.Sync(ctx)
}

func (o *Orchestrator) run(ctx context.Context, throttle bool) error {
	if !o.syncing.CompareAndSwap(false, true) {
		o.skipped.Add(1)
		o.logger.Debug(ctx, "sync skipped: pass in flight")
		return nil
	}
	o.accountMu.Lock()
	// syncing drops first so a transition waiting on accountMu can start
	// the pass for its new account.
	defer func() {
		o.syncing.Store(false)
		o.accountMu.Unlock()
	}()

	o.mu.Lock()
	if o.session == nil {
		o.mu.Unlock()
		o.skipped.Add(1)
		o.logger.Debug(ctx, "sync skipped: signed out")
		return nil
	}
	now := o.clock.Now()
	if throttle && !o.lastPass.IsZero() && now.Sub(o.lastPass) < o.cooldown {
		o.mu.Unlock()
		o.skipped.Add(1)
		o.logger.Debug(ctx, "sync skipped: cooldown")
		return nil
	}
	o.lastPass = now
	client, accountID := o.cloud, o.session.ID()
	o.mu.Unlock()

	return o.pass(ctx, client, accountID)
}

func (o *Orchestrator) pass(ctx context.Context, client cloud.Client, accountID string) error {
	pulled, err := o.pull(ctx, client, accountID)
	if err != nil {
		o.logger.Warn(ctx, "pull failed", "error", err)
		o.fail(ctx, err)
		return err
	}

	pushed, pushErr := o.push(ctx, client, accountID)
	if pushErr != nil {
		o.logger.Warn(ctx, "push finished with errors", "error", pushErr)
	}

	refreshErr := o.store.Refresh(ctx)

	if err := errors.Join(pushErr, refreshErr); err != nil {
		o.fail(ctx, err)
		return err
	}

	if o.meta != nil {
		if err := metadata.SetLastSyncedAt(ctx, o.meta, o.clock.Now()); err != nil {
			o.logger.Warn(ctx, "failed to record sync time", "error", err)
		}
	}

	o.logger.Info(ctx, "sync pass finished",
		"fetched", pulled.Fetched, "inserted", pulled.Inserted, "updated", pulled.Updated,
		"ai_updated", pulled.AIUpdated, "upserted", pushed.Upserted, "removed", pushed.Removed,
		"conflicts", pushed.Conflicts)
	return nil
}

// fail records err in the store unless ctx was cancelled, which only happens
// on shutdown.
func (o *Orchestrator) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	o.store.RecordGlobalError(err)
}

// LastSyncedAt returns the time of the last successful pass, if recorded.
func (o *Orchestrator) LastSyncedAt(ctx context.Context) (time.Time, error) {
	if o.meta == nil {
		return time.Time{}, nil
	}
	return metadata.LastSyncedAt(ctx, o.meta)
}

// WatchAIAnalysis subscribes to analysis events for entryID. onReady runs on
// every event when given (RefreshEntry is the cheap way to load the result);
// otherwise the event triggers a forced sync pass. Events are ignored once
// the orchestrator is closed.
func (o *Orchestrator) WatchAIAnalysis(entryID string, onReady func()) func() {
	if o.realtime == nil {
		return func() {}
	}

	unsub := o.realtime.Subscribe(entryID, func(ev realtime.Event) {
		o.mu.Lock()
		if o.closed {
			o.mu.Unlock()
			return
		}
		if onReady != nil {
			o.mu.Unlock()
			onReady()
			return
		}
		ctx := o.baseCtx
		o.background.Add(1)
		o.mu.Unlock()

		go func() {
			defer o.background.Done()
			if err := o.SyncNow(ctx); err != nil && ctx.Err() == nil {
				o.logger.Warn(ctx, "analysis-triggered sync failed", "entry", ev.EntryID, "error", err)
			}
		}()
	})

	o.mu.Lock()
	o.nextWatch++
	id := o.nextWatch
	o.watches[id] = unsub
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.watches, id)
			o.mu.Unlock()
			unsub()
		})
	}
}

// Start binds the orchestrator to the current account (reconciling with the
// account recorded by the previous run), hydrates the store and syncs. With
// an account signal configured, later changes are followed until Close.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	o.cancel()
	o.baseCtx, o.cancel = context.WithCancel(ctx)
	base := o.baseCtx
	o.mu.Unlock()

	// The subscription exists before the signal is read, so a change that
	// lands during startup waits on accountMu instead of being missed.
	if o.signal != nil {
		unsub := o.signal.Subscribe(func(next *account.Session) {
			if err := o.follow(base, next, true); err != nil {
				o.logger.Error(base, "account change failed", "error", err)
			}
		})
		o.mu.Lock()
		o.unsubSignal = unsub
		o.mu.Unlock()
	}

	o.accountMu.Lock()
	var current *account.Session
	if o.signal != nil {
		current = o.signal.Get()
	}
	prev := ""
	if o.meta != nil {
		var err error
		if prev, err = metadata.LastAccount(ctx, o.meta); err != nil {
			o.logger.Warn(ctx, "failed to read last account", "error", err)
		}
	}
	err := o.transition(ctx, prev, current)
	o.started = true
	o.accountMu.Unlock()

	if err != nil {
		return err
	}
	if current != nil {
		o.initialSync(ctx)
	}
	return nil
}

// HandleAccountChange moves the local database and the cloud binding to next.
// A nil next means sign-out.
func (o *Orchestrator) HandleAccountChange(ctx context.Context, next *account.Session) error {
	return o.follow(ctx, next, false)
}

// follow applies next. Signal deliveries that arrive before Start has read
// the signal are dropped: Start picks up the latest value itself.
func (o *Orchestrator) follow(ctx context.Context, next *account.Session, fromSignal bool) error {
	o.accountMu.Lock()
	if fromSignal && !o.started {
		o.accountMu.Unlock()
		return nil
	}

	o.mu.Lock()
	cur := o.session
	o.mu.Unlock()

	if cur.ID() == next.ID() {
		defer o.accountMu.Unlock()
		if cur != nil && next != nil && cur.AccessToken != next.AccessToken {
			return o.bind(next)
		}
		return nil
	}

	err := o.transition(ctx, cur.ID(), next)
	o.accountMu.Unlock()
	if err != nil || next == nil {
		return err
	}
	o.initialSync(ctx)
	return nil
}

// initialSync runs the first pass for a freshly bound account. It happens
// outside accountMu; a pass already waiting on the lock serves the same
// purpose.
func (o *Orchestrator) initialSync(ctx context.Context) {
	if err := o.SyncNow(ctx); err != nil {
		o.logger.Warn(ctx, "initial sync failed", "account", o.Account(), "error", err)
	}
}

func (o *Orchestrator) transition(ctx context.Context, prevID string, next *account.Session) error {
	nextID := next.ID()
	log := o.logger.With("from", prevID, "to", nextID)

	if nextID == "" {
		if prevID != "" {
			n, err := o.purge(ctx, func(owner string) bool { return owner == prevID })
			if err != nil {
				return err
			}
			log.Info(ctx, "signed out, local rows removed", "rows", n)
		}
		if err := o.bind(nil); err != nil {
			return err
		}
		o.rememberAccount(ctx, "")
		return o.hydrate(ctx)
	}

	n, err := o.purge(ctx, func(owner string) bool { return owner != "" && owner != nextID })
	if err != nil {
		return err
	}
	claimed, err := o.claim(ctx, nextID)
	if err != nil {
		return err
	}
	log.Info(ctx, "account bound", "purged", n, "claimed", claimed)

	if err := o.bind(next); err != nil {
		return err
	}
	o.rememberAccount(ctx, nextID)
	return o.hydrate(ctx)
}

func (o *Orchestrator) hydrate(ctx context.Context) error {
	if err := o.store.Hydrate(ctx); err != nil {
		o.logger.Warn(ctx, "hydrate failed", "error", err)
		return err
	}
	return nil
}

func (o *Orchestrator) rememberAccount(ctx context.Context, id string) {
	if o.meta == nil {
		return
	}
	if err := metadata.SetLastAccount(ctx, o.meta, id); err != nil {
		o.logger.Warn(ctx, "failed to record account", "error", err)
	}
}

// bind swaps the cloud client for one authenticated as s; nil unbinds.
func (o *Orchestrator) bind(s *account.Session) error {
	var c cloud.Client
	if s != nil {
		var err error
		if c, err = o.newCloud(s.AccountID, s.AccessToken); err != nil {
			return err
		}
		cp := *s
		s = &cp
	}

	o.mu.Lock()
	old := o.cloud
	o.cloud = c
	o.session = s
	o.lastPass = time.Time{}
	o.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (o *Orchestrator) purge(ctx context.Context, match func(owner string) bool) (int, error) {
	rows, err := o.local.GetAllIncludingDeleted(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range rows {
		if !match(r.AccountID) {
			continue
		}
		if err := o.local.HardDelete(ctx, r.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (o *Orchestrator) claim(ctx context.Context, accountID string) (int, error) {
	rows, err := o.local.GetAllIncludingDeleted(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range rows {
		if r.AccountID != "" {
			continue
		}
		if _, err := o.local.Update(ctx, r.ID, claimPatch(accountID)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Close stops following the account signal, drops realtime watches, waits
// for event-triggered passes and releases the cloud client. The orchestrator
// is unbound afterwards.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	o.closed = true
	o.cancel()
	unsubs := make([]func(), 0, len(o.watches)+1)
	for _, u := range o.watches {
		unsubs = append(unsubs, u)
	}
	o.watches = map[int]func(){}
	if o.unsubSignal != nil {
		unsubs = append(unsubs, o.unsubSignal)
		o.unsubSignal = nil
	}
	c := o.cloud
	o.cloud = nil
	o.session = nil
	o.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	o.background.Wait()
	if c != nil {
		return c.Close()
	}
	return nil
}
