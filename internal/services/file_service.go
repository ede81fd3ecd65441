package services

import (
	"context"
	"io"

	"imgshare-backend/internal/blobstore"
	"imgshare-backend/internal/models"
	"imgshare-backend/internal/store"
)

// FileService is read-side glue: listings and blob downloads.
type FileService struct {
	blobs   blobstore.Store
	records *store.RecordStore
}

func NewFileService(blobs blobstore.Store, records *store.RecordStore) *FileService {
	return &FileService{blobs: blobs, records: records}
}

func (s *FileService) List(ctx context.Context) ([]models.FileRecord, error) {
	return s.records.List(ctx)
}

func (s *FileService) ListEvents(ctx context.Context, limit int) ([]models.UploadEvent, error) {
	return s.records.ListEvents(ctx, limit)
}

// Open returns the blob content for cid plus whatever metadata exists.
// A blob can outlive its record (rollback races, tombstones), so the
// record is optional and the mime defaults to octet-stream.
func (s *FileService) Open(ctx context.Context, cid string) (io.ReadCloser, int64, string, error) {
	mime := "application/octet-stream"
	if rec, err := s.records.Get(ctx, cid); err == nil && rec.Mime != "" {
		mime = rec.Mime
	}

	rc, size, err := s.blobs.Open(ctx, cid)
	if err != nil {
		return nil, 0, "", err
	}
	return rc, size, mime, nil
}
