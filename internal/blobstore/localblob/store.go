// Package localblob stores content-addressed blobs on the local
// filesystem, fanned out by the first two characters of the CID. Writes go
// through a temp file and are renamed into place once the hash is known.
package localblob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"imgshare-backend/internal/blobstore"
)

type Store struct {
	basePath string
}

var _ blobstore.Store = (*Store)(nil)

func New(basePath string) *Store {
	return &Store{basePath: basePath}
}

func (s *Store) Put(ctx context.Context, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return "", err
	}

	tmpPath := filepath.Join(s.basePath, fmt.Sprintf("temp-%s", uuid.New()))
	defer os.Remove(tmpPath)

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", err
	}

	contentHash := sha256.New()
	buf := make([]byte, 1*1024*1024) // 1MB
	_, err = io.CopyBuffer(io.MultiWriter(f, contentHash), newCtxReader(ctx, r), buf)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", err
	}

	cid := hex.EncodeToString(contentHash.Sum(nil))
	finalPath := s.blobPath(cid)

	if err := os.MkdirAll(filepath.Dir(finalPath), 0755); err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", err
	}
	return cid, nil
}

func (s *Store) Open(_ context.Context, cid string) (io.ReadCloser, int64, error) {
	f, err := os.Open(s.blobPath(cid))
	if os.IsNotExist(err) {
		return nil, 0, blobstore.ErrBlobNotFound
	}
	if err != nil {
		return nil, 0, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

func (s *Store) Delete(_ context.Context, cid string) error {
	if err := os.Remove(s.blobPath(cid)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

func (s *Store) blobPath(cid string) string {
	if len(cid) < 2 {
		return filepath.Join(s.basePath, "data", "__", cid+".dat")
	}
	return filepath.Join(s.basePath, "data", cid[:2], fmt.Sprintf("%s.dat", cid))
}

// ctxReader fails the copy as soon as ctx is done, so a cancelled upload
// does not keep writing to disk.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func newCtxReader(ctx context.Context, r io.Reader) *ctxReader {
	return &ctxReader{ctx: ctx, r: r}
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
