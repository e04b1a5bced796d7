package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/picasync/internal/shared"
)

// JournalRepository is a shared key-value namespace whose changes can be
// observed by other processes opening the same SQLite file.
//
// Every Set and Remove appends a row to sync_events. Watchers poll the feed by
// id, so a key that is written and removed between two polls is still seen.
type JournalRepository struct {
	db        *sql.DB
	poll      time.Duration
	retention time.Duration
	logger    *log.Logger
	now       func() time.Time

	mu      sync.Mutex
	closed  bool
	cancels []context.CancelFunc
	wg      sync.WaitGroup
}

// JournalOpts contains configuration options for creating a [JournalRepository].
type JournalOpts struct {
	Poll      time.Duration // Poll is the watcher interval (default 100ms)
	Retention time.Duration // Retention bounds how long events are kept (default 1m)
	Logger    *log.Logger
}

// NewJournalRepository creates a new [JournalRepository] over db.
func NewJournalRepository(db *sql.DB, opts JournalOpts) *JournalRepository {
	if opts.Poll <= 0 {
		opts.Poll = 100 * time.Millisecond
	}
	if opts.Retention <= 0 {
		opts.Retention = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewDiscardLogger()
	}
	return &JournalRepository{
		db:        db,
		poll:      opts.Poll,
		retention: opts.Retention,
		logger:    opts.Logger,
		now:       time.Now,
	}
}

// Set writes key and records the change.
func (r *JournalRepository) Set(ctx context.Context, key string, value []byte) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.now()
	upsert := `
		INSERT INTO sync_namespace (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, upsert, key, value, now); err != nil {
		return fmt.Errorf("failed to write namespace key %s: %w", key, err)
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO sync_events (key, value, created_at) VALUES (?, ?, ?)", key, value, now.UnixMilli()); err != nil {
		return fmt.Errorf("failed to append event for %s: %w", key, err)
	}

	return tx.Commit()
}

// Remove deletes key, records the change and prunes expired events.
func (r *JournalRepository) Remove(ctx context.Context, key string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.now()
	if _, err := tx.ExecContext(ctx, "DELETE FROM sync_namespace WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete namespace key %s: %w", key, err)
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO sync_events (key, value, created_at) VALUES (?, NULL, ?)", key, now.UnixMilli()); err != nil {
		return fmt.Errorf("failed to append event for %s: %w", key, err)
	}

	cutoff := now.Add(-r.retention).UnixMilli()
	if _, err := tx.ExecContext(ctx, "DELETE FROM sync_events WHERE created_at < ?", cutoff); err != nil {
		return fmt.Errorf("failed to prune events: %w", err)
	}

	return tx.Commit()
}

// Value reads the current value of key.
func (r *JournalRepository) Value(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, "SELECT value FROM sync_namespace WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query namespace key %s: %w", key, err)
	}
	return value, true, nil
}

// Watch calls fn for every change to a key starting with prefix recorded
// after Watch returns. Removals are delivered with a nil value.
//
// fn runs on the watcher goroutine, in journal order.
func (r *JournalRepository) Watch(ctx context.Context, prefix string, fn func(key string, value []byte)) (func(), error) {
	var cursor int64
	if err := r.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) FROM sync_events").Scan(&cursor); err != nil {
		return nil, fmt.Errorf("failed to read journal cursor: %w", err)
	}

	wctx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("%w: journal", shared.ErrTransportClosed)
	}
	r.cancels = append(r.cancels, cancel)
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.poll)
		defer ticker.Stop()

		for {
			select {
			case <-wctx.Done():
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				next, err := r.drain(wctx, prefix, cursor, fn)
				if err != nil {
					if wctx.Err() == nil {
						r.logger.Warn("journal poll failed", "error", err)
					}
					continue
				}
				cursor = next
			}
		}
	}()

	return cancel, nil
}

// drain delivers events after cursor and returns the new cursor.
func (r *JournalRepository) drain(ctx context.Context, prefix string, cursor int64, fn func(string, []byte)) (int64, error) {
	query := `
		SELECT id, key, value FROM sync_events
		WHERE id > ? AND substr(key, 1, length(?)) = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, cursor, prefix, prefix)
	if err != nil {
		return cursor, fmt.Errorf("failed to query events: %w", err)
	}

	type event struct {
		key   string
		value []byte
	}
	var events []event
	last := cursor
	for rows.Next() {
		var (
			id    int64
			key   string
			value []byte
		)
		if err := rows.Scan(&id, &key, &value); err != nil {
			rows.Close()
			return cursor, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event{key: key, value: value})
		last = id
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return cursor, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	// Deliver after releasing the connection; fn may write to the journal.
	for _, e := range events {
		fn(e.key, e.value)
	}
	return last, nil
}

// Close stops every watcher and waits for them to exit. The database is owned by the caller.
func (r *JournalRepository) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	cancels := r.cancels
	r.cancels = nil
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	r.wg.Wait()
	return nil
}
