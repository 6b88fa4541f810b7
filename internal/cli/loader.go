package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/instrumentd/internal/config"
	"github.com/roach88/instrumentd/internal/engine"
	"github.com/roach88/instrumentd/internal/store"
)

// session is a registry rebuilt from a journal, ready for more actions.
type session struct {
	catalog *config.Catalog
	store   *store.Store
	engine  *engine.Engine

	// restored counts the journaled actions replayed on open; booted counts
	// the catalog boot actions executed against an empty journal.
	restored int
	booted   int
}

// loadCatalog loads a catalog file or directory, mapping failures to
// command errors.
func loadCatalog(path string) (*config.Catalog, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &config.LoadError{Message: fmt.Sprintf("catalog not found: %s", path)}
	}
	return config.Load(path)
}

// engineOptions returns the catalog's engine options plus the CLI logger.
func engineOptions(opts *RootOptions, catalog *config.Catalog) ([]engine.Option, error) {
	catOpts, err := catalog.EngineOptions()
	if err != nil {
		return nil, err
	}
	return append(catOpts, engine.WithLogger(opts.Logger())), nil
}

// openSession opens the journal at dbPath and rebuilds the registry the
// catalog describes. An existing journal is replayed and must match; an
// empty one receives the catalog's boot actions.
func openSession(ctx context.Context, opts *RootOptions, dbPath, catalogPath string, extra ...engine.Option) (*session, error) {
	catalog, err := loadCatalog(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	engOpts, err := engineOptions(opts, catalog)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	s := &session{
		catalog: catalog,
		store:   st,
		engine:  engine.New(st, catalog.Registry.Owner, append(engOpts, extra...)...),
	}

	report, err := s.engine.Restore(ctx)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("journal: %w", err)
	}
	s.restored = report.Actions

	if report.Actions == 0 {
		if err := s.boot(ctx); err != nil {
			st.Close()
			return nil, err
		}
	}
	opts.Logger().Info("session ready",
		"db", dbPath,
		"restored", s.restored,
		"booted", s.booted,
	)
	return s, nil
}

// rebuild replays the journal at dbPath onto a fresh engine that journals
// nothing, for read-only inspection. The journal must exist.
func rebuild(ctx context.Context, opts *RootOptions, dbPath, catalogPath string) (*engine.Engine, *config.Catalog, error) {
	catalog, err := loadCatalog(catalogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("catalog: %w", err)
	}
	engOpts, err := engineOptions(opts, catalog)
	if err != nil {
		return nil, nil, fmt.Errorf("catalog: %w", err)
	}

	if _, err := os.Stat(dbPath); err != nil {
		return nil, nil, fmt.Errorf("journal: database not found: %s", dbPath)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("journal: %w", err)
	}
	defer st.Close()

	entries, err := st.ReadJournal(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("journal: %w", err)
	}
	eng := engine.New(nil, catalog.Registry.Owner, engOpts...)
	if _, err := eng.Rebuild(entries); err != nil {
		return nil, nil, fmt.Errorf("journal: %w", err)
	}
	return eng, catalog, nil
}

// boot executes the catalog's boot actions, all of which must succeed.
func (s *session) boot(ctx context.Context) error {
	for i, a := range s.catalog.BootActions() {
		res, err := s.engine.Execute(ctx, a)
		if err != nil {
			return fmt.Errorf("boot action %d (%s): %w", i, a.Kind, err)
		}
		if res.Err != nil {
			return fmt.Errorf("boot action %d (%s): %w", i, a.Kind, res.Err)
		}
		s.booted++
	}
	return nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// isCatalogError reports whether err came from loading the catalog.
func isCatalogError(err error) bool {
	var le *config.LoadError
	return errors.As(err, &le)
}
