package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/picasync/internal/storage"
)

// Field describes one member of the state struct S and the durable key backing it.
type Field[S any] struct {
	name    string
	key     string
	load    func(ctx context.Context, d *storage.Durable, s *S) error
	persist func(ctx context.Context, d *storage.Durable, s *S) error
	encode  func(s *S) (json.RawMessage, error)
	decode  func(s *S, data json.RawMessage) error
}

// NewField binds the member returned by acc to key, exposed under name.
func NewField[S, T any](name string, key storage.Key[T], acc func(*S) *T) Field[S] {
	return Field[S]{
		name: name,
		key:  key.Name(),
		load: func(ctx context.Context, d *storage.Durable, s *S) error {
			v, ok, err := storage.Lookup(ctx, d, key)
			if err != nil {
				return err
			}
			if ok {
				*acc(s) = v
			}
			return nil
		},
		persist: func(ctx context.Context, d *storage.Durable, s *S) error {
			return storage.Set(ctx, d, key, *acc(s))
		},
		encode: func(s *S) (json.RawMessage, error) {
			data, err := json.Marshal(*acc(s))
			if err != nil {
				return nil, fmt.Errorf("failed to encode field %s: %w", name, err)
			}
			return data, nil
		},
		decode: func(s *S, data json.RawMessage) error {
			var v T
			if err := json.Unmarshal(data, &v); err != nil {
				return fmt.Errorf("failed to decode field %s: %w", name, err)
			}
			*acc(s) = v
			return nil
		},
	}
}

// Name returns the field name used in snapshots and sync messages.
func (f Field[S]) Name() string { return f.name }

// Key returns the durable key name.
func (f Field[S]) Key() string { return f.key }
