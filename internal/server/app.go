// Package server wires the journal backend together: Postgres storage, the
// entries gRPC service, the realtime events endpoint and S3 exports.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/cbtjournal/internal/logging"
	"github.com/dmitrijs2005/cbtjournal/internal/server/auth"
	"github.com/dmitrijs2005/cbtjournal/internal/server/config"
	"github.com/dmitrijs2005/cbtjournal/internal/server/events"
	"github.com/dmitrijs2005/cbtjournal/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cbtjournal/internal/server/services"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/cbtjournal/internal/server/grpc"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	entryService *services.EntryService
	broadcaster  *events.Broadcaster
}

// NewApp opens and migrates the database and builds the services. When the
// S3 client cannot be configured the backend still starts with exports
// disabled.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	var uploader services.Uploader
	if u, err := services.NewS3Uploader(ctx, c); err != nil {
		logger.Warn(ctx, "exports disabled", "error", err)
	} else {
		uploader = u
	}

	return newApp(c, logger, db, rm, uploader), nil
}

func newApp(c *config.Config, logger logging.Logger, db *sql.DB, rm repomanager.RepositoryManager, uploader services.Uploader) *App {
	secret := []byte(c.SecretKey)
	b := events.NewBroadcaster(func(token string) (string, error) {
		return auth.GetAccountIDFromToken(token, secret)
	}, logger)

	es := services.NewEntryService(db, rm, uploader, b, services.WithLogger(logger))

	return &App{config: c, logger: logger, db: db, entryService: es, broadcaster: b}
}

func (app *App) runHTTPServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.broadcaster.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "Starting events server", "address", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "Stopping events server...")
	app.broadcaster.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("events server shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run serves gRPC and HTTP until ctx is cancelled or either server fails,
// then closes the database.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.entryService, app.config.SecretKey)
		return s.Run(ctx)
	})
	g.Go(func() error {
		return app.runHTTPServer(ctx)
	})

	err := g.Wait()
	if cerr := app.db.Close(); cerr != nil {
		app.logger.Error(context.Background(), "db close error", "error", cerr)
	}
	app.logger.Info(context.Background(), "App stopped")
	return err
}
