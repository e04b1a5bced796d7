package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/picasync/internal/shared"
)

// Engine is the persistence substrate used by [Durable].
type Engine interface {
	Get(ctx context.Context, key string) ([]byte, bool, error) // Get returns the stored document and whether it exists
	Set(ctx context.Context, key string, value []byte) error   // Set stores the document under key
	Remove(ctx context.Context, key string) error              // Remove deletes key; missing keys are not an error
	Clear(ctx context.Context) error                           // Clear deletes every key
	Keys(ctx context.Context) ([]string, error)                // Keys lists stored keys
}

// Durable provides typed access to an [Engine].
type Durable struct {
	engine Engine
	logger *log.Logger
}

// New creates a [Durable] over engine. A nil logger discards output.
func New(engine Engine, logger *log.Logger) *Durable {
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}
	return &Durable{engine: engine, logger: logger}
}

// Engine returns the underlying engine.
func (d *Durable) Engine() Engine { return d.engine }

// Get reads key, returning def when nothing is stored.
//
// On failure def is returned together with the error.
func Get[T any](ctx context.Context, d *Durable, key Key[T], def T) (T, error) {
	data, ok, err := d.engine.Get(ctx, key.name)
	if err != nil {
		d.logger.Warn("durable read failed, using default", "key", key.name, "error", err)
		return def, fmt.Errorf("%w: get %s: %v", shared.ErrStorageUnavailable, key.name, err)
	}
	if !ok {
		return def, nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		d.logger.Warn("durable value corrupt, using default", "key", key.name, "error", err)
		return def, fmt.Errorf("%w: %s: %v", shared.ErrCorruptValue, key.name, err)
	}
	return v, nil
}

// Lookup reads key and reports whether a value was stored.
func Lookup[T any](ctx context.Context, d *Durable, key Key[T]) (T, bool, error) {
	var zero T
	data, ok, err := d.engine.Get(ctx, key.name)
	if err != nil {
		return zero, false, fmt.Errorf("%w: get %s: %v", shared.ErrStorageUnavailable, key.name, err)
	}
	if !ok {
		return zero, false, nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false, fmt.Errorf("%w: %s: %v", shared.ErrCorruptValue, key.name, err)
	}
	return v, true, nil
}

// Set persists value under key.
func Set[T any](ctx context.Context, d *Durable, key Key[T], value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key.name, err)
	}

	if err := d.engine.Set(ctx, key.name, data); err != nil {
		d.logger.Warn("durable write failed", "key", key.name, "error", err)
		return fmt.Errorf("%w: set %s: %v", shared.ErrStorageUnavailable, key.name, err)
	}
	return nil
}

// Remove deletes key.
func Remove[T any](ctx context.Context, d *Durable, key Key[T]) error {
	if err := d.engine.Remove(ctx, key.name); err != nil {
		return fmt.Errorf("%w: remove %s: %v", shared.ErrStorageUnavailable, key.name, err)
	}
	return nil
}

// Clear deletes every stored key.
func (d *Durable) Clear(ctx context.Context) error {
	if err := d.engine.Clear(ctx); err != nil {
		return fmt.Errorf("%w: clear: %v", shared.ErrStorageUnavailable, err)
	}
	return nil
}

// Keys lists the stored keys in sorted order.
func (d *Durable) Keys(ctx context.Context) ([]string, error) {
	keys, err := d.engine.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: keys: %v", shared.ErrStorageUnavailable, err)
	}
	slices.Sort(keys)
	return keys, nil
}

// Raw returns the stored JSON document for name, for display purposes.
func (d *Durable) Raw(ctx context.Context, name string) (json.RawMessage, bool, error) {
	data, ok, err := d.engine.Get(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %s: %v", shared.ErrStorageUnavailable, name, err)
	}
	return data, ok, nil
}
