// Package s3blob stores content-addressed blobs in an S3 (or minio)
// bucket. The content id is only known once the stream has been consumed,
// so uploads go to a staging key while hashing and are then copied
// server-side to their final CID key.
package s3blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"imgshare-backend/internal/blobstore"
)

type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

type Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

var _ blobstore.Store = (*Store)(nil)

func New(ctx context.Context, cfg Config) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.Endpoint != "" // minio needs path-style addressing
	})

	return &Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
	}, nil
}

func (s *Store) Put(ctx context.Context, r io.Reader) (string, error) {
	staging := "staging/" + uuid.NewString()

	contentHash := sha256.New()
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(staging),
		Body:   io.TeeReader(r, contentHash),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload: %w", err)
	}

	cid := hex.EncodeToString(contentHash.Sum(nil))

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(blobKey(cid)),
		CopySource: aws.String(s.bucket + "/" + staging),
	})
	if err != nil {
		// Leave nothing behind if the blob never reached its final key.
		s.deleteKey(ctx, staging)
		return "", fmt.Errorf("s3 copy to cid key: %w", err)
	}

	s.deleteKey(ctx, staging)
	return cid, nil
}

func (s *Store) Open(ctx context.Context, cid string) (io.ReadCloser, int64, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(blobKey(cid)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, 0, blobstore.ErrBlobNotFound
		}
		return nil, 0, fmt.Errorf("s3 get: %w", err)
	}
	return out.Body, aws.ToInt64(out.ContentLength), nil
}

func (s *Store) Delete(ctx context.Context, cid string) error {
	// S3 deletes are idempotent: removing an absent key succeeds.
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(blobKey(cid)),
	})
	if err != nil {
		return fmt.Errorf("s3 delete: %w", err)
	}
	return nil
}

func (s *Store) deleteKey(ctx context.Context, key string) {
	_, _ = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
}

func blobKey(cid string) string {
	if len(cid) < 2 {
		return "blobs/__/" + cid
	}
	return "blobs/" + cid[:2] + "/" + cid
}
