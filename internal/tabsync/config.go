package tabsync

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/desertthunder/picasync/internal/shared"
)

// ConflictResolution selects how inbound state is applied.
type ConflictResolution string

const (
	Latest ConflictResolution = "latest" // Latest overwrites each incoming field
	Merge  ConflictResolution = "merge"  // Merge shallow-merges object fields
	Ignore ConflictResolution = "ignore" // Ignore drops inbound messages
)

// DefaultDebounce is used when a config leaves Debounce unset.
const DefaultDebounce = 150 * time.Millisecond

// Config is the per-store sync opt-in.
type Config struct {
	Enabled            bool
	Include            []string
	Exclude            []string
	Debounce           time.Duration
	ConflictResolution ConflictResolution
}

// ConfigFrom converts the TOML settings of one store.
func ConfigFrom(sc shared.StoreSyncConfig) (Config, error) {
	cfg := Config{
		Enabled:            sc.Enabled,
		Include:            slices.Clone(sc.Include),
		Exclude:            slices.Clone(sc.Exclude),
		Debounce:           sc.Debounce(),
		ConflictResolution: ConflictResolution(sc.ConflictResolution),
	}
	return cfg.normalize()
}

func (c Config) normalize() (Config, error) {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	switch c.ConflictResolution {
	case "":
		c.ConflictResolution = Latest
	case Latest, Merge, Ignore:
	default:
		return c, fmt.Errorf("%w: unknown conflict resolution %q", shared.ErrInvalidConfig, c.ConflictResolution)
	}
	return c, nil
}

// Filter projects state onto the fields cfg allows.
//
// A non-empty Include keeps only those fields. Otherwise a non-empty Exclude
// removes those fields. Otherwise everything is kept. The result is a new map.
func Filter(state map[string]json.RawMessage, cfg Config) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(state))
	switch {
	case len(cfg.Include) > 0:
		for _, name := range cfg.Include {
			if v, ok := state[name]; ok {
				out[name] = v
			}
		}
	case len(cfg.Exclude) > 0:
		for name, v := range state {
			if !slices.Contains(cfg.Exclude, name) {
				out[name] = v
			}
		}
	default:
		for name, v := range state {
			out[name] = v
		}
	}
	return out
}
