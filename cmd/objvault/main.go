// Package main provides the objvault binary entry point. It loads
// configuration from the environment, wires the storage adapters to the
// application service, starts the garbage collector, and serves the HTTP
// API.
//
// The application flow:
//  1. Load and validate configuration.
//  2. Ensure the data directory and storage-class roots exist.
//  3. Open the SQLite metadata store.
//  4. Construct the blob store, metrics manager, application service, and
//     garbage collector.
//  5. Start the HTTP server; block until it exits.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/haukened/objvault/internal/app"
	"github.com/haukened/objvault/internal/blobstore"
	"github.com/haukened/objvault/internal/config"
	"github.com/haukened/objvault/internal/domain"
	"github.com/haukened/objvault/internal/gc"
	"github.com/haukened/objvault/internal/httpx"
	"github.com/haukened/objvault/internal/metrics"
	"github.com/haukened/objvault/internal/store/sqlite"
)

// realClock implements domain.Clock using time.Now.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(2)
	}
	return cfg
}

// ensureDataDir creates the SQLite data directory and both storage-class
// roots, returning an error rather than exiting so tests can exercise it.
func ensureDataDir(dataDir, hotRoot, coldRoot string) error {
	for _, dir := range []string{dataDir, hotRoot, coldRoot} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return nil
}

func openDatabase(cfg *config.Config) (*sql.DB, *sqlite.Store, error) {
	db, err := sql.Open("sqlite3", cfg.SQLiteDSN())
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	st, err := sqlite.New(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, st, nil
}

func buildService(st *sqlite.Store, files app.BlobStore, mgr *metrics.Manager, clock domain.Clock, cfg *config.Config) *app.Service {
	return app.NewService(st, st, files, clock, mgr, cfg.HotRoot, cfg.ColdRoot, cfg.MaxUploadBytes, cfg.MaxListLimit, cfg.MaxConcurrentUploads)
}

func buildCollector(st *sqlite.Store, files app.BlobStore, clock domain.Clock, cfg *config.Config) *gc.Collector {
	return gc.New(st, st, files, clock, gc.Config{
		Interval:        cfg.GCInterval,
		BatchSize:       cfg.GCBatchSize,
		StuckWritingAge: cfg.StuckWritingAge,
		HotRoot:         cfg.HotRoot,
		ColdRoot:        cfg.ColdRoot,
		Logger:          slog.Default(),
	})
}

func buildHandler(svc *app.Service, db *sql.DB, cfg *config.Config) http.Handler {
	readiness := func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		for _, root := range []string{cfg.HotRoot, cfg.ColdRoot} {
			f, err := os.CreateTemp(root, ".readyz-*")
			if err != nil {
				return err
			}
			name := f.Name()
			f.Close()
			if err := os.Remove(name); err != nil {
				return err
			}
		}
		return nil
	}
	h := httpx.New(svc, cfg.MaxUploadBytes, readiness)
	return h.Router()
}

func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func run() error {
	cfg := loadConfig()
	if err := ensureDataDir(cfg.DataDir, cfg.HotRoot, cfg.ColdRoot); err != nil {
		return err
	}

	db, st, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	mgr := metrics.New(metrics.Config{Logger: slog.Default()})
	mgr.Start(ctx)
	defer mgr.Stop()

	clock := realClock{}
	files := blobstore.New()
	svc := buildService(st, files, mgr, clock, cfg)

	collector := buildCollector(st, files, clock, cfg)
	collector.Start(ctx)
	defer collector.Stop()

	srv := newServer(cfg, buildHandler(svc, db, cfg))
	slog.Info("starting server", "addr", cfg.Addr, "pid", os.Getpid())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
