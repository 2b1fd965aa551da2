// ABOUTME: Store interface and key naming for session persistence
// ABOUTME: Defines the creds/key-material namespace shared by both backends

package session

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Read when the key has no stored value.
var ErrNotFound = errors.New("not found")

// CredsKey is the key under which the credential bundle is stored.
const CredsKey = "creds"

// Store is durable key/value persistence for one account's session.
type Store interface {
	// Read returns the stored value, or ErrNotFound if the key is absent.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write stores the value under the key, replacing any existing value.
	Write(ctx context.Context, key string, value []byte) error

	// Remove deletes the key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Clear removes every key in the session namespace.
	Clear(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// KeyName builds the storage key for a key-material entry.
func KeyName(category, id string) string {
	return category + "-" + id
}

// sanitizeKey makes a key safe for use as a file name. Categories and IDs
// from the network may contain path separators and colons.
func sanitizeKey(key string) string {
	key = strings.ReplaceAll(key, "/", "__")
	return strings.ReplaceAll(key, ":", "-")
}
