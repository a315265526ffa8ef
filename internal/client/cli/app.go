package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/cbtjournal/internal/client/account"
	"github.com/dmitrijs2005/cbtjournal/internal/client/cloud"
	"github.com/dmitrijs2005/cbtjournal/internal/client/config"
	"github.com/dmitrijs2005/cbtjournal/internal/client/localdb"
	"github.com/dmitrijs2005/cbtjournal/internal/client/realtime"
	"github.com/dmitrijs2005/cbtjournal/internal/client/repositories/entries"
	"github.com/dmitrijs2005/cbtjournal/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/cbtjournal/internal/client/services"
	"github.com/dmitrijs2005/cbtjournal/internal/client/store"
	"github.com/dmitrijs2005/cbtjournal/internal/client/syncer"
	"github.com/dmitrijs2005/cbtjournal/internal/clock"
	"github.com/dmitrijs2005/cbtjournal/internal/filex"
	"github.com/dmitrijs2005/cbtjournal/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Pinger reports whether the backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type exportClient interface {
	cloud.Exporter
	Close() error
}

type App struct {
	config *config.Config
	logger logging.Logger
	clock  clock.Clock

	store   *store.Store
	local   entries.Repository
	syncer  *syncer.Orchestrator
	signal  *account.Signal
	session *account.FileWatcher
	feed    *realtime.Feed
	pinger  Pinger

	newExporter func(accountID, accessToken string) (exportClient, error)
	closers     []io.Closer

	reader *bufio.Reader
	out    io.Writer

	mu      sync.Mutex
	mode    Mode
	unwatch func()
}

// NewApp opens the local database and wires the client components. Nothing
// touches the network until Run.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if _, err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		return nil, err
	}

	db, err := localdb.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	prober, err := cloud.NewProber(c.ServerEndpointAddr)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	clk := clock.System{}
	repo := entries.NewSQLiteRepository(db)
	meta := metadata.NewSQLiteRepository(db)

	st := store.New(services.NewEntriesService(repo, clk), clk, store.WithLogger(logger))
	signal := account.NewSignal(nil)
	hub := realtime.NewHub()

	orch := syncer.New(repo, cloud.NewFactory(c.ServerEndpointAddr), st,
		syncer.WithClock(clk),
		syncer.WithLogger(logger),
		syncer.WithCooldown(c.SyncCooldown),
		syncer.WithRealtime(hub),
		syncer.WithAccountSignal(signal),
		syncer.WithMetadata(meta),
	)

	return &App{
		config:  c,
		logger:  logger.With("module", "cli"),
		clock:   clk,
		store:   st,
		local:   repo,
		syncer:  orch,
		signal:  signal,
		session: account.NewFileWatcher(c.SessionFile, signal, logger),
		feed:    realtime.NewFeed(c.EventsURL, hub, logger),
		pinger:  prober,
		newExporter: func(accountID, accessToken string) (exportClient, error) {
			return cloud.NewGRPCClient(c.ServerEndpointAddr, accountID, accessToken)
		},
		closers: []io.Closer{orch, prober, db},
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}, nil
}

// Run starts the background watchers, binds the current account and serves
// the REPL until the user exits or ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close()

	if a.session != nil {
		_ = a.session.Reload(ctx)
		go func() {
			if err := a.session.Run(ctx); err != nil {
				a.logger.Error(ctx, "session watcher stopped", "error", err)
			}
		}()
	}

	if err := a.syncer.Start(ctx); err != nil {
		fmt.Fprintln(a.out, "Startup sync failed:", err)
	}

	if a.feed != nil {
		go a.followFeed(ctx)
	}
	if a.pinger != nil {
		go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)
	}

	fmt.Fprintln(a.out, "CBT journal (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
	return nil
}

// Close releases everything NewApp opened.
func (a *App) Close() error {
	a.mu.Lock()
	if a.unwatch != nil {
		a.unwatch()
		a.unwatch = nil
	}
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()

	var errs []error
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// followFeed keeps one realtime connection open for the current session.
func (a *App) followFeed(ctx context.Context) {
	var (
		mu   sync.Mutex
		stop context.CancelFunc = func() {}
	)
	restart := func(s *account.Session) {
		mu.Lock()
		defer mu.Unlock()
		stop()
		stop = func() {}
		if s == nil {
			return
		}
		fctx, c := context.WithCancel(ctx)
		stop = c
		go func() { _ = a.feed.Run(fctx, s.AccessToken) }()
	}

	unsub := a.signal.Subscribe(restart)
	restart(a.signal.Get())

	<-ctx.Done()
	unsub()
	mu.Lock()
	stop()
	mu.Unlock()
}

func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// setMode records the connectivity mode and reports whether it changed.
func (a *App) setMode(mode Mode) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode == mode {
		return false
	}
	a.mode = mode
	return true
}

func (a *App) getStatus() string {
	s := "signed out"
	if sess := a.signal.Get(); sess != nil {
		s = sess.AccountID
	}
	if m := a.Mode(); m != "" {
		s = s + " " + string(m)
	}
	return fmt.Sprintf("(%s)", s)
}

// StartOnlineStatusWatcher probes the backend every interval. Going back
// online counts as the app regaining the foreground and triggers a sync.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := a.pinger.Ping(pctx)
	cancel()

	if err != nil {
		if a.setMode(ModeOffline) {
			a.logger.Info(ctx, "switched to offline mode", "error", err)
		}
		return
	}
	if a.setMode(ModeOnline) {
		a.logger.Info(ctx, "switched to online mode")
		if err := a.syncer.OnForeground(ctx); err != nil {
			a.logger.Warn(ctx, "foreground sync failed", "error", err)
		}
	}
}

// kick requests a throttled background sync after a local change.
func (a *App) kick(ctx context.Context) {
	go func() {
		if err := a.syncer.Sync(ctx); err != nil {
			a.logger.Warn(ctx, "background sync failed", "error", err)
		}
	}()
}
