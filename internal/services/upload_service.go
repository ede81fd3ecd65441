package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"imgshare-backend/internal/blobstore"
	"imgshare-backend/internal/models"
	"imgshare-backend/internal/store"
)

var (
	ErrInvalidFileType = errors.New("invalid file type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrNoFileReceived  = errors.New("no file received")
	ErrUploadFailed    = errors.New("upload failed")
	ErrQuotaExceeded   = errors.New("quota exceeded")
)

const fileFieldName = "file"

// UploadService streams multipart bodies into the blob store and commits
// the result against the per-user quota. The quota check is
// check-act-recheck: the backing store has no transactions, so a racing
// upload that pushes usage past the cap rolls itself back after the fact.
type UploadService struct {
	blobs   blobstore.Store
	records *store.RecordStore
	quotas  *store.QuotaLedger

	nodeID       string
	maxBytes     int64
	allowedMimes map[string]struct{}

	log *zap.Logger
}

type UploadConfig struct {
	NodeID       string
	MaxBytes     int64
	AllowedMimes []string
}

func NewUploadService(blobs blobstore.Store, records *store.RecordStore, quotas *store.QuotaLedger, cfg UploadConfig, log *zap.Logger) *UploadService {
	allowed := make(map[string]struct{}, len(cfg.AllowedMimes))
	for _, m := range cfg.AllowedMimes {
		allowed[m] = struct{}{}
	}
	return &UploadService{
		blobs:        blobs,
		records:      records,
		quotas:       quotas,
		nodeID:       cfg.NodeID,
		maxBytes:     cfg.MaxBytes,
		allowedMimes: allowed,
		log:          log,
	}
}

// Upload runs the full quota-gated commit for one request body.
func (s *UploadService) Upload(ctx context.Context, username string, body io.Reader, contentType string) (models.FileRecord, models.Quota, error) {
	// Fast-path rejection. This races against concurrent uploads from the
	// same user; the recheck below is what restores the invariant.
	quota, err := s.quotas.Get(ctx, username)
	if err != nil {
		return models.FileRecord{}, models.Quota{}, err
	}
	if quota.Full() {
		return models.FileRecord{}, models.Quota{}, ErrQuotaExceeded
	}

	res, err := s.ingest(ctx, body, contentType)
	if err != nil {
		return models.FileRecord{}, models.Quota{}, err
	}

	record := models.FileRecord{
		CID:       res.CID,
		Owner:     username,
		Filename:  res.Filename,
		Mime:      res.Mime,
		Size:      res.Size,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		NodeID:    s.nodeID,
	}

	if err := s.records.Save(ctx, record); err != nil {
		s.deleteBlobBestEffort(ctx, record.CID)
		return models.FileRecord{}, models.Quota{}, err
	}

	updated, err := s.quotas.Increment(ctx, username, 1)
	if err != nil {
		return models.FileRecord{}, models.Quota{}, err
	}

	if updated.Exceeded() {
		// A concurrent upload also passed the pre-check. This request
		// observed the overage, so it is the one that rolls back.
		s.log.Warn("quota exceeded after commit, rolling back",
			zap.String("user", username), zap.String("cid", record.CID))

		if _, derr := s.quotas.Increment(ctx, username, -1); derr != nil {
			s.log.Error("rollback: quota decrement failed", zap.Error(derr))
		}
		s.deleteBlobBestEffort(ctx, record.CID)
		if derr := s.records.Remove(ctx, record.CID); derr != nil {
			s.log.Error("rollback: record removal failed", zap.Error(derr))
		}
		return models.FileRecord{}, models.Quota{}, ErrQuotaExceeded
	}

	event := models.UploadEvent{
		Type:      models.EventTypeUpload,
		User:      username,
		Filename:  record.Filename,
		CID:       record.CID,
		NodeID:    s.nodeID,
		CreatedAt: record.CreatedAt,
	}
	if err := s.records.AddEvent(ctx, event); err != nil {
		return models.FileRecord{}, models.Quota{}, err
	}

	return record, updated, nil
}

type ingestResult struct {
	CID      string
	Filename string
	Mime     string
	Size     int64
}

// ingest parses the multipart body incrementally and pipes the first field
// named "file" into the blob store. Parse and store run concurrently: the
// blob store's consumption paces the parse, and either side failing
// cancels the other through the pipe.
func (s *UploadService) ingest(ctx context.Context, body io.Reader, contentType string) (*ingestResult, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
		return nil, ErrNoFileReceived
	}

	reader := multipart.NewReader(body, params["boundary"])
	result := &ingestResult{}
	seenFile := false

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}

		if seenFile || part.FormName() != fileFieldName {
			// Only one file field is recognized; everything else is
			// drained without validation.
			io.Copy(io.Discard, part)
			part.Close()
			continue
		}
		seenFile = true

		result.Filename = part.FileName()
		if result.Filename == "" {
			result.Filename = "upload"
		}
		result.Mime = part.Header.Get("Content-Type")
		if result.Mime == "" {
			result.Mime = "application/octet-stream"
		}

		if _, ok := s.allowedMimes[result.Mime]; !ok {
			part.Close()
			return nil, ErrInvalidFileType
		}

		cid, size, err := s.streamToBlobs(ctx, part)
		part.Close()
		if err != nil {
			return nil, err
		}
		result.CID = cid
		result.Size = size
	}

	if !seenFile {
		return nil, ErrNoFileReceived
	}
	return result, nil
}

// streamToBlobs copies part into the blob store through a pipe while
// counting bytes. Crossing maxBytes tears down the pipe mid-stream, which
// fails the in-flight Put instead of letting it complete.
func (s *UploadService) streamToBlobs(ctx context.Context, part io.Reader) (string, int64, error) {
	pr, pw := io.Pipe()

	var (
		cid      string
		total    int64
		tooLarge bool
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		id, err := s.blobs.Put(ctx, pr)
		pr.CloseWithError(err)
		if err != nil {
			return err
		}
		cid = id
		return nil
	})

	g.Go(func() error {
		defer pw.Close()

		buf := make([]byte, 32*1024)
		for {
			n, rerr := part.Read(buf)
			if n > 0 {
				total += int64(n)
				if total > s.maxBytes {
					tooLarge = true
					pw.CloseWithError(ErrFileTooLarge)
					return ErrFileTooLarge
				}
				if _, werr := pw.Write(buf[:n]); werr != nil {
					return werr
				}
			}
			if errors.Is(rerr, io.EOF) {
				return nil
			}
			if rerr != nil {
				pw.CloseWithError(rerr)
				return rerr
			}
		}
	})

	if err := g.Wait(); err != nil {
		// The blob store may surface the torn-down pipe as its own wrapped
		// error, so the producer's verdict takes precedence.
		if tooLarge || errors.Is(err, ErrFileTooLarge) {
			return "", 0, ErrFileTooLarge
		}
		return "", 0, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return cid, total, nil
}

func (s *UploadService) deleteBlobBestEffort(ctx context.Context, cid string) {
	// Metadata consistency wins over blob cleanup; an orphaned blob is an
	// accepted, bounded leak.
	if err := s.blobs.Delete(ctx, cid); err != nil {
		s.log.Warn("best-effort blob delete failed",
			zap.String("cid", cid), zap.Error(err))
	}
}
