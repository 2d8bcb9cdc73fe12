package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nhle/lifeplan/internal/credential"
	"github.com/nhle/lifeplan/internal/extindex"
	"github.com/nhle/lifeplan/internal/mirror"
	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/progress"
	"github.com/nhle/lifeplan/internal/recurrence"
	"github.com/nhle/lifeplan/internal/report"
	"github.com/nhle/lifeplan/internal/store"
	lpsync "github.com/nhle/lifeplan/internal/sync"
)

// Options tune how an App is assembled. The zero value is what the CLI
// uses.
type Options struct {
	Logger *log.Logger
	Now    func() time.Time

	// Source is recorded on every event the App produces.
	Source model.EventSource

	// Credentials overrides the platform keyring.
	Credentials credential.Store

	// Mirror replaces the configured mirror when set.
	Mirror mirror.Mirror
}

// App owns the store and the engines of one invocation.
type App struct {
	Config *model.AppConfig

	Store      *store.SQLiteStore
	Index      *extindex.Index
	Mirror     mirror.Mirror
	Recurrence *recurrence.Engine
	Reports    *report.Engine
	Reconciler *lpsync.Reconciler

	logger *log.Logger
	now    func() time.Time
	source model.EventSource
}

// Open opens the database named by cfg and wires the engines on top of
// it, talking to the configured mirror unless opts.Mirror is set.
func Open(cfg *model.AppConfig, opts Options) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Source == "" {
		opts.Source = model.EventSourceCLI
	}

	s, err := store.NewSQLiteStore(cfg.DatabasePath, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.DatabasePath, err)
	}

	m := opts.Mirror
	if m == nil {
		m, err = NewMirror(cfg.Mirror, opts.Credentials, opts.Logger, opts.Now)
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	index := extindex.New(s, opts.Now)
	return &App{
		Config:     cfg,
		Store:      s,
		Index:      index,
		Mirror:     m,
		Recurrence: recurrence.New(s, opts.Logger, opts.Now),
		Reports:    report.New(s, opts.Logger, opts.Now),
		Reconciler: lpsync.NewReconciler(s, index, m, opts.Logger, opts.Now),
		logger:     opts.Logger,
		now:        opts.Now,
		source:     opts.Source,
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.Store.Close()
}

// Now returns the App clock.
func (a *App) Now() time.Time {
	return a.now()
}

// Workspace resolves the workspace called name, or the only workspace
// when name is empty.
func (a *App) Workspace(ctx context.Context, name string) (model.Workspace, error) {
	var ws model.Workspace
	err := a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		var err error
		if name == "" {
			ws, err = uow.Workspaces.LoadOnly(ctx)
		} else {
			ws, err = uow.Workspaces.FindByName(ctx, name)
		}
		return err
	})
	return ws, err
}

// NewWatcher returns a background sync over the workspace called name,
// re-resolved before every run.
func (a *App) NewWatcher(name string, opts lpsync.Options, rep *progress.Reporter) *lpsync.Watcher {
	interval := time.Duration(a.Config.Sync.WatchIntervalSec) * time.Second
	return lpsync.NewWatcher(a.Reconciler, func(ctx context.Context) (model.Workspace, error) {
		return a.Workspace(ctx, name)
	}, opts, interval, rep)
}
