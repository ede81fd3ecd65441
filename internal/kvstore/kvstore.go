// Package kvstore defines the hash-map key-value contract the application
// is written against. Backends provide redis, postgres and in-memory
// implementations; none of them offer transactions or compare-and-swap,
// which is why quota accounting compensates instead of locking.
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the field is absent. An empty value
// is not the same thing: tombstones are stored as empty strings.
var ErrNotFound = errors.New("kvstore: not found")

// Store is a map of named hashes, each hash a map of string fields to
// string values.
type Store interface {
	// Get returns the value of key inside hash hkey, or ErrNotFound.
	Get(ctx context.Context, hkey, key string) (string, error)

	// Set writes the value of key inside hash hkey, creating either as
	// needed. Writing an empty value is allowed and acts as a tombstone.
	Set(ctx context.Context, hkey, key, value string) error

	// GetAll returns every field of hash hkey. A missing hash yields an
	// empty map, not an error.
	GetAll(ctx context.Context, hkey string) (map[string]string, error)

	Close() error
}
