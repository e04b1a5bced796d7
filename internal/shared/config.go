package shared

import (
	_ "embed"
	"fmt"
	"maps"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Storage  StorageConfig  `toml:"storage"`
	Database DatabaseConfig `toml:"database"`
	API      APIConfig      `toml:"api"`
	Sync     SyncConfig     `toml:"sync"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// StorageConfig selects the durable engine backing the stores.
type StorageConfig struct {
	Engine string `toml:"engine"` // sqlite, bolt or memory
	Path   string `toml:"path"`
}

// DatabaseConfig contains database connection settings. Path is set per
// opened file from [storage] or [sync].
type DatabaseConfig struct {
	Path         string `toml:"-"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// APIConfig contains comic API settings, including the request signing material.
type APIConfig struct {
	BaseURL        string  `toml:"base_url"`
	FileServer     string  `toml:"file_server"`
	APIKey         string  `toml:"api_key"`
	Secret         string  `toml:"secret"`
	Nonce          string  `toml:"nonce"`
	Channel        string  `toml:"channel"`
	Platform       string  `toml:"platform"`
	RateLimit      float64 `toml:"rate_limit"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// SyncConfig contains cross-context synchronization settings.
type SyncConfig struct {
	Channel          string                     `toml:"channel"`   // Channel names the in-process bus channel
	Transport        string                     `toml:"transport"` // journal or none
	JournalPath      string                     `toml:"journal_path"`
	KeyPrefix        string                     `toml:"key_prefix"`
	SettleMS         int                        `toml:"settle_ms"`
	PollMS           int                        `toml:"poll_ms"`
	ClearMS          int                        `toml:"clear_ms"`
	RetentionSeconds int                        `toml:"retention_seconds"`
	Stores           map[string]StoreSyncConfig `toml:"stores"`
}

// StoreSyncConfig is the per-store sync opt-in.
type StoreSyncConfig struct {
	Enabled            bool     `toml:"enabled"`
	DebounceMS         int      `toml:"debounce_ms"`
	ConflictResolution string   `toml:"conflict_resolution"`
	Include            []string `toml:"include"`
	Exclude            []string `toml:"exclude"`
}

// Settle returns the settle delay as a [time.Duration].
func (c SyncConfig) Settle() time.Duration { return time.Duration(c.SettleMS) * time.Millisecond }

// Poll returns the journal poll interval as a [time.Duration].
func (c SyncConfig) Poll() time.Duration { return time.Duration(c.PollMS) * time.Millisecond }

// Clear returns the delay before a fallback key is removed.
func (c SyncConfig) Clear() time.Duration { return time.Duration(c.ClearMS) * time.Millisecond }

// Retention returns how long journal events are kept.
func (c SyncConfig) Retention() time.Duration {
	return time.Duration(c.RetentionSeconds) * time.Second
}

// Debounce returns the debounce window as a [time.Duration].
func (c StoreSyncConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Store returns the sync settings for storeID, or a disabled config when none are present.
func (c SyncConfig) Store(storeID string) StoreSyncConfig {
	if sc, ok := c.Stores[storeID]; ok {
		return sc
	}
	return StoreSyncConfig{}
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "sqlite", "bolt", "memory":
	default:
		return fmt.Errorf("%w: unknown storage engine %q", ErrInvalidConfig, c.Storage.Engine)
	}

	switch c.Sync.Transport {
	case "journal", "none":
	default:
		return fmt.Errorf("%w: unknown sync transport %q", ErrInvalidConfig, c.Sync.Transport)
	}

	if c.Storage.Engine == "bolt" && c.Sync.Transport == "journal" && c.Storage.Path == c.Sync.JournalPath {
		return fmt.Errorf("%w: bolt storage and the sync journal cannot share %s", ErrInvalidConfig, c.Storage.Path)
	}

	for id, sc := range c.Sync.Stores {
		switch sc.ConflictResolution {
		case "", "latest", "merge", "ignore":
		default:
			return fmt.Errorf("%w: store %s: unknown conflict resolution %q", ErrInvalidConfig, id, sc.ConflictResolution)
		}
		if sc.DebounceMS < 0 {
			return fmt.Errorf("%w: store %s: negative debounce", ErrInvalidConfig, id)
		}
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	defaults := maps.Clone(config.Sync.Stores)

	md, err := toml.Decode(string(data), config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.Sync.Stores = mergeStores(defaults, config.Sync.Stores, md)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// mergeStores lays the store tables of a user file over the defaults. The
// decoder replaces a whole map entry, so only keys the file defines are taken.
func mergeStores(defaults, decoded map[string]StoreSyncConfig, md toml.MetaData) map[string]StoreSyncConfig {
	out := maps.Clone(defaults)
	if out == nil {
		out = make(map[string]StoreSyncConfig, len(decoded))
	}

	for id, sc := range decoded {
		base, ok := defaults[id]
		if !ok {
			out[id] = sc
			continue
		}

		defined := func(key string) bool { return md.IsDefined("sync", "stores", id, key) }
		if defined("enabled") {
			base.Enabled = sc.Enabled
		}
		if defined("debounce_ms") {
			base.DebounceMS = sc.DebounceMS
		}
		if defined("conflict_resolution") {
			base.ConflictResolution = sc.ConflictResolution
		}
		if defined("include") {
			base.Include = sc.Include
		}
		if defined("exclude") {
			base.Exclude = sc.Exclude
		}
		out[id] = base
	}
	return out
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: config file already exists at %s", ErrInvalidInput, path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
