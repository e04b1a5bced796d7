// Package repositories implements the persistence engines behind the durable
// store and the cross-process sync journal.
//
// Key Implementations:
//   - [KVRepository] : SQLite storage.Engine over the kv_entries table
//   - [BoltRepository] : bbolt storage.Engine over a single bucket
//   - [JournalRepository] : SQLite shared namespace with a polled change feed,
//     used by the storage-event fallback transport
//
// The SQLite schema is created by the embedded migrations in package shared.
// Open the database with [shared.OpenDatabase] so WAL mode and the busy
// timeout are applied; several processes may then share one file.
package repositories
