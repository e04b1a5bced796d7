package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// KVRepository implements [storage.Engine] over the kv_entries table.
type KVRepository struct {
	db *sql.DB
}

// NewKVRepository creates a new [KVRepository] with the given database connection
func NewKVRepository(db *sql.DB) *KVRepository {
	return &KVRepository{db: db}
}

// Get retrieves the document stored under key
func (r *KVRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, "SELECT value FROM kv_entries WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query entry %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts the document stored under key
func (r *KVRepository) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, key, value, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert entry %s: %w", key, err)
	}
	return nil
}

// Remove deletes key
func (r *KVRepository) Remove(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM kv_entries WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete entry %s: %w", key, err)
	}
	return nil
}

// Clear deletes every entry
func (r *KVRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM kv_entries"); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}
	return nil
}

// Keys lists stored keys ordered by name
func (r *KVRepository) Keys(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT key FROM kv_entries ORDER BY key ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return keys, nil
}
