package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/text/language"

	"github.com/roach88/inkwell/internal/backup"
	"github.com/roach88/inkwell/internal/bus"
	"github.com/roach88/inkwell/internal/library"
	"github.com/roach88/inkwell/internal/ordering"
	"github.com/roach88/inkwell/internal/search"
	"github.com/roach88/inkwell/internal/stats"
	"github.com/roach88/inkwell/internal/store"
	"github.com/roach88/inkwell/internal/workspace"
)

// app is one command's fully wired set of components. Nothing is global:
// every command builds its own and closes it before returning.
type app struct {
	store     *store.Store
	bus       *bus.Bus
	library   *library.Library
	workspace *workspace.Workspace
	stats     *stats.Engine
	search    *search.Searcher
	backup    *backup.Service

	stop func() error
}

func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg := opts.Config
	path := cfg.DatabasePath()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, WrapExitError(ExitCommandError, "create database directory", err)
		}
	}

	st, err := store.Open(path, store.WithClock(opts.clock))
	if err != nil {
		return nil, WrapExitError(ExitFailure, "open database", err)
	}

	tag, err := language.Parse(cfg.Search.Locale)
	if err != nil {
		slog.Warn("unknown search locale, using und", "locale", cfg.Search.Locale, "error", err)
		tag = language.Und
	}

	b := bus.New(bus.WithClock(opts.clock))
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan error, 1)
	go func() { done <- b.Run(runCtx) }()

	a := &app{
		store:     st,
		bus:       b,
		library:   library.New(st, b, library.WithLocale(tag)),
		workspace: workspace.New(st, b, workspace.WithClock(opts.clock)),
		stats:     stats.New(st, b, stats.WithClock(opts.clock)),
		search: search.NewSearcher(st,
			search.WithMinQueryLength(cfg.Search.MinQueryLength),
			search.WithLimitPerKind(cfg.Search.LimitPerKind),
			search.WithLocale(tag),
		),
		backup: backup.New(st, backup.WithClock(opts.clock)),
	}
	a.stop = func() error {
		cancel()
		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	if err := a.library.Load(ctx); err != nil {
		a.close(ctx)
		return nil, WrapExitError(ExitFailure, "load library", err)
	}
	slog.Debug("database opened", "path", path)
	return a, nil
}

// close delivers every pending bus event, then tears components down.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if err := a.bus.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush bus: %w", err))
	}
	a.workspace.Detach()
	a.library.Detach()
	a.stats.Detach()
	a.bus.Stop()
	if err := a.stop(); err != nil {
		errs = append(errs, err)
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}

// withApp opens the app, runs fn and closes the app, keeping fn's error.
func withApp(ctx context.Context, opts *RootOptions, fn func(a *app) error) (err error) {
	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(ctx); cerr != nil && err == nil {
			err = WrapExitError(ExitFailure, "shutdown", cerr)
		}
	}()
	return fn(a)
}

// openBook loads bookID into the workspace.
func (a *app) openBook(ctx context.Context, bookID int64) error {
	if _, ok := a.library.Book(bookID); !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("book %d not found", bookID))
	}
	if err := a.workspace.Open(ctx, bookID); err != nil {
		return WrapExitError(ExitFailure, "open book", err)
	}
	return nil
}

// storeError maps component errors to exit errors.
func storeError(message string, err error) error {
	switch {
	case err == nil:
		return nil
	case store.IsNotFound(err):
		return WrapExitError(ExitCommandError, message, err)
	case errors.Is(err, ordering.ErrInvalidIndex),
		errors.Is(err, ordering.ErrInvalidOrder),
		errors.Is(err, library.ErrEmptyTitle):
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}
