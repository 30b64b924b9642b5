package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/mikeyg42/sentinel/internal/config"
)

// MinIOStore uploads snapshots to an S3-compatible object store.
type MinIOStore struct {
	client *minio.Client
	bucket string
	cfg    config.MinIOConfig
	logger *zap.Logger

	metrics struct {
		uploads      atomic.Uint64
		uploadBytes  atomic.Uint64
		uploadErrors atomic.Uint64
	}
}

// NewMinIOStore connects to the object store and ensures the bucket exists.
func NewMinIOStore(cfg config.MinIOConfig, logger *zap.Logger) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	store := &MinIOStore{
		client: client,
		bucket: cfg.Bucket,
		cfg:    cfg,
		logger: logger.Named("snapshot-minio"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		store.logger.Info("created snapshot bucket", zap.String("bucket", cfg.Bucket))
	}

	return store, nil
}

// Save uploads the snapshot with a small retry budget. Beyond that the
// error surfaces to the caller, who treats it as a missing snapshot.
func (s *MinIOStore) Save(ctx context.Context, name string, jpeg []byte) error {
	newBackoff := func() backoff.BackOff {
		ebo := backoff.NewExponentialBackOff()
		if s.cfg.RetryBackoff > 0 {
			ebo.InitialInterval = s.cfg.RetryBackoff
		}
		ebo.Reset()
		if s.cfg.MaxRetries > 0 {
			return backoff.WithMaxRetries(ebo, uint64(s.cfg.MaxRetries))
		}
		return backoff.WithMaxRetries(ebo, 2)
	}

	op := func() error {
		_, err := s.client.PutObject(ctx, s.bucket, name,
			bytes.NewReader(jpeg), int64(len(jpeg)),
			minio.PutObjectOptions{ContentType: "image/jpeg"})
		if err != nil {
			s.metrics.uploadErrors.Add(1)
		}
		return err
	}

	if err := backoff.Retry(op, backoff.WithContext(newBackoff(), ctx)); err != nil {
		return fmt.Errorf("upload snapshot %q: %w", name, err)
	}

	s.metrics.uploads.Add(1)
	s.metrics.uploadBytes.Add(uint64(len(jpeg)))
	s.logger.Debug("snapshot uploaded",
		zap.String("name", name), zap.Int("bytes", len(jpeg)))
	return nil
}

// Metrics returns upload counters.
func (s *MinIOStore) Metrics() (uploads, uploadBytes, errors uint64) {
	return s.metrics.uploads.Load(), s.metrics.uploadBytes.Load(),
		s.metrics.uploadErrors.Load()
}
