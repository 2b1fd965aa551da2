// Package session provides durable key/value persistence for the account's
// credential bundle and cryptographic key material.
//
// # Layout
//
// The namespace holds one "creds" entry plus zero or more "<category>-<id>"
// key-material entries (see KeyName). Values are opaque byte slices; callers
// serialize structured data (wire.Credentials and friends) to JSON in which
// binary fields round-trip exactly via wire.Binary.
//
// # Backends
//
//   - FileStore: one file per key under a directory, written atomically
//     (temp file + rename) so an entry is never partially visible.
//   - SQLiteStore: a single two-column table
//     session_keys(key TEXT PRIMARY KEY, value TEXT NOT NULL)
//     using modernc.org/sqlite with WAL mode.
//
// # Semantics
//
// Write is an upsert (full value replace). Remove of an absent key is a
// no-op. Read of an absent key returns ErrNotFound; any other failure means
// the store is unreachable or corrupt and callers must not treat it as "no
// session exists".
package session
