// Package blobstore defines the content-addressed blob contract. A blob is
// identified by its CID, the hex sha256 of its content; storing the same
// bytes twice yields the same id.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
)

var ErrBlobNotFound = errors.New("blobstore: blob not found")

type Store interface {
	// Put streams r into the store and returns the content id. The
	// reader is consumed fully; callers cancel via ctx or by failing r.
	Put(ctx context.Context, r io.Reader) (cid string, err error)

	// Open returns the blob's content and size, or ErrBlobNotFound.
	Open(ctx context.Context, cid string) (io.ReadCloser, int64, error)

	// Delete removes the blob. Deleting an absent blob is not an error.
	Delete(ctx context.Context, cid string) error
}

// SumCID returns the content id for already-materialized bytes. Used by
// tests and by backends that hash out of band.
func SumCID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
