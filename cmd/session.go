package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/picasync/internal/repositories"
	"github.com/desertthunder/picasync/internal/services"
	"github.com/desertthunder/picasync/internal/shared"
	"github.com/desertthunder/picasync/internal/storage"
	"github.com/desertthunder/picasync/internal/stores"
	"github.com/desertthunder/picasync/internal/tabsync"
)

// Session is one opened context: the durable engine, the sync coordinator and the stores.
type Session struct {
	Durable     *storage.Durable
	Coordinator *tabsync.Coordinator
	Stores      *stores.Set
	Client      services.Client
	closers     []func() error
}

// openSession opens the configured engine and transport, then loads and registers the stores.
func (r *Runner) openSession(ctx context.Context) (_ *Session, err error) {
	s := &Session{}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	engine, db, err := r.openEngine(s)
	if err != nil {
		return nil, err
	}
	s.Durable = storage.New(engine, r.logger)

	transport, err := r.openTransport(s, db)
	if err != nil {
		return nil, err
	}

	s.Coordinator, err = tabsync.NewCoordinator(transport, tabsync.Options{
		Settle: r.config.Sync.Settle(),
		Logger: r.logger,
	})
	if err != nil {
		return nil, err
	}

	s.Stores, err = stores.Open(ctx, stores.Options{
		Durable:     s.Durable,
		Coordinator: s.Coordinator,
		Sync:        r.config.Sync,
		Logger:      r.logger,
	})
	if err != nil {
		return nil, err
	}

	s.Client = r.client
	if s.Client == nil {
		proxy := s.Stores.Setting.Comic().Proxy.API
		s.Client = services.NewAPIServiceFromConfig(r.config.API, proxy, s.Stores.Session, r.logger)
	}

	r.logger.Debug("session opened", "engine", r.config.Storage.Engine, "transport", r.config.Sync.Transport, "origin", s.Coordinator.OriginID())
	return s, nil
}

// openEngine returns the durable engine, and the SQLite handle when the engine is sqlite.
func (r *Runner) openEngine(s *Session) (storage.Engine, *sql.DB, error) {
	cfg := r.config.Storage

	switch cfg.Engine {
	case "sqlite":
		db, err := shared.OpenDatabase(r.databaseConfig(cfg.Path))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		s.closers = append(s.closers, db.Close)
		return repositories.NewKVRepository(db), db, nil
	case "bolt":
		repo, err := repositories.NewBoltRepository(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		s.closers = append(s.closers, repo.Close)
		return repo, nil, nil
	case "memory":
		return storage.NewMemoryEngine(), nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown storage engine %q", shared.ErrInvalidConfig, cfg.Engine)
	}
}

// openTransport opens the sync transport. A nil transport disables sync.
//
// With a bus the session joins the [sync] channel and falls back to the
// journal. The journal reuses the store's database when both live in the same file.
func (r *Runner) openTransport(s *Session, storeDB *sql.DB) (tabsync.Transport, error) {
	cfg := r.config.Sync

	var fallback tabsync.Transport
	if cfg.Transport == "journal" {
		db := storeDB
		if db == nil || cfg.JournalPath != r.config.Storage.Path {
			var err error
			if db, err = shared.OpenDatabase(r.databaseConfig(cfg.JournalPath)); err != nil {
				return nil, fmt.Errorf("failed to open sync journal: %w", err)
			}
			s.closers = append(s.closers, db.Close)
		}

		journal := repositories.NewJournalRepository(db, repositories.JournalOpts{
			Poll:      cfg.Poll(),
			Retention: cfg.Retention(),
			Logger:    shared.WithLogger(r.logger, "component", "journal"),
		})
		s.closers = append(s.closers, journal.Close)

		transport := tabsync.NewNamespaceTransport(journal, tabsync.NamespaceOpts{
			Prefix: cfg.KeyPrefix,
			Clear:  cfg.Clear(),
			Logger: r.logger,
		})
		s.closers = append(s.closers, transport.Close)
		fallback = transport
	}

	if r.bus == nil {
		return fallback, nil
	}

	endpoint := r.bus.Open(cfg.Channel)
	s.closers = append(s.closers, endpoint.Close)
	if fallback == nil {
		return endpoint, nil
	}
	return tabsync.NewDual(endpoint, fallback), nil
}

func (r *Runner) databaseConfig(path string) shared.DatabaseConfig {
	return shared.DatabaseConfig{
		Path:         path,
		MaxOpenConns: r.config.Database.MaxOpenConns,
		MaxIdleConns: r.config.Database.MaxIdleConns,
	}
}

// Close flushes pending broadcasts, then closes the transport, journal and database in that order.
func (s *Session) Close() error {
	var errs []error
	if s.Coordinator != nil {
		errs = append(errs, s.Coordinator.Close())
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// withSession runs fn with an open session and closes it afterwards.
func (r *Runner) withSession(ctx context.Context, fn func(*Session) error) (err error) {
	s, err := r.openSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close session: %w", cerr))
		}
	}()

	return fn(s)
}
