package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/picasync/internal/mirror"
	"github.com/desertthunder/picasync/internal/models"
	"github.com/desertthunder/picasync/internal/services"
	"github.com/desertthunder/picasync/internal/shared"
	"github.com/desertthunder/picasync/internal/storage"
	"github.com/desertthunder/picasync/internal/tabsync"
)

// Store is the read side shared by every mirrored store, used for display.
type Store interface {
	ID() string
	Fields() []string
	Snapshot() (map[string]json.RawMessage, error)
	Subscribe(fn mirror.Observer) func()
}

// Set bundles the three stores of one context.
type Set struct {
	Local   *LocalStore
	User    *UserStore
	Setting *SettingStore
}

// Options configures [Open].
type Options struct {
	Durable     *storage.Durable
	Coordinator *tabsync.Coordinator // Coordinator is optional; nil disables sync
	Sync        shared.SyncConfig
	Logger      *log.Logger
}

// Open builds the stores, loads them from storage and registers them for sync.
//
// Load failures are logged and leave the affected fields at their defaults.
func Open(ctx context.Context, opts Options) (*Set, error) {
	if opts.Logger == nil {
		opts.Logger = shared.NewDiscardLogger()
	}

	set := &Set{
		Local:   NewLocalStore(opts.Durable, opts.Logger),
		User:    NewUserStore(opts.Durable, opts.Logger),
		Setting: NewSettingStore(opts.Durable, opts.Logger),
	}

	for _, s := range []interface {
		ID() string
		InitStorage(context.Context) error
	}{set.Local, set.User, set.Setting} {
		if err := s.InitStorage(ctx); err != nil {
			opts.Logger.Warn("store loaded with defaults", "store", s.ID(), "error", err)
		}
	}

	if opts.Coordinator == nil {
		return set, nil
	}

	for _, s := range []tabsync.Store{set.Local, set.User, set.Setting} {
		cfg, err := tabsync.ConfigFrom(opts.Sync.Store(s.ID()))
		if err != nil {
			return nil, fmt.Errorf("store %s: %w", s.ID(), err)
		}
		if _, err := opts.Coordinator.Register(s, cfg); err != nil {
			return nil, fmt.Errorf("failed to register store %s: %w", s.ID(), err)
		}
	}

	return set, nil
}

// All returns the stores in display order.
func (s *Set) All() []Store {
	return []Store{s.Local, s.User, s.Setting}
}

// Lookup returns the store with id, or nil.
func (s *Set) Lookup(id string) Store {
	for _, st := range s.All() {
		if st.ID() == id {
			return st
		}
	}
	return nil
}

// Session reports the values the API client sends with every request.
func (s *Set) Session() (string, models.ImageQuality) {
	return s.User.Token(), s.Setting.Comic().ImageQuality
}

// Categories returns the cached categories, fetching and caching them when
// the cache is empty.
func Categories(ctx context.Context, local *LocalStore, client services.Client) ([]models.Category, error) {
	if cached := local.Categories(); len(cached) > 0 {
		return cached, nil
	}

	cats, err := client.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}

	if err := local.SetCategories(ctx, cats); err != nil {
		return cats, err
	}
	return cats, nil
}

// Visible filters out the categories blocked in setting.
func Visible(cats []models.Category, setting models.ComicSetting) []models.Category {
	out := make([]models.Category, 0, len(cats))
	for _, c := range cats {
		if !slices.Contains(setting.BlockedCategories, c.Title) {
			out = append(out, c)
		}
	}
	return out
}
