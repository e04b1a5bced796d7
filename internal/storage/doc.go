// Package storage implements the durable store: typed, persistent key-value
// access over a pluggable [Engine].
//
// Keys form a closed set declared in keys.go. Each [Key] carries the Go type
// of its value, so [Get] and [Set] can never read or write a value under the
// wrong type. Values are stored as JSON documents.
//
// Engines:
//   - [MemoryEngine] : in-process map, used by tests and the "memory" engine setting
//   - repositories.KVRepository : SQLite table
//   - repositories.BoltRepository : bbolt bucket
//
// Reads never fail on a missing key: the caller's default is returned. Engine
// failures are wrapped with [shared.ErrStorageUnavailable] and still return
// the default, so callers can fall back to in-memory state.
package storage
