// Package objectstore mirrors generated overlays to an S3-compatible bucket.
package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const contentType = "image/png"

// Options configures a Mirror.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
}

// bucketClient is the subset of *minio.Client the mirror uses.
type bucketClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Locator resolves an overlay reference to a local file.
type Locator interface {
	Path(ref string) string
}

// Mirror uploads each newly generated overlay under its reference.
// It implements pipeline.Sink.
type Mirror struct {
	client  bucketClient
	bucket  string
	locator Locator
	logger  *slog.Logger

	mu    sync.Mutex
	ready bool
}

// NewMirror creates a MinIO client for opts. No request is made until the
// first overlay is mirrored.
func NewMirror(opts Options, locator Locator, logger *slog.Logger) (*Mirror, error) {
	endpoint := strings.TrimPrefix(opts.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store client: %w", err)
	}
	return newMirror(client, opts.Bucket, locator, logger), nil
}

func newMirror(client bucketClient, bucket string, locator Locator, logger *slog.Logger) *Mirror {
	return &Mirror{client: client, bucket: bucket, locator: locator, logger: logger}
}

// Name identifies the mirror in logs and metrics.
func (m *Mirror) Name() string { return "objectstore" }

// RunCompleted uploads the overlay of a run that rendered one.
func (m *Mirror) RunCompleted(ctx context.Context, run domain.RunRecord) error {
	if !run.Generated() || run.ResultRef == "" {
		return nil
	}
	if err := m.ensureBucket(ctx); err != nil {
		return err
	}

	info, err := m.client.FPutObject(ctx, m.bucket, run.ResultRef, m.locator.Path(run.ResultRef), minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"product": run.Product,
			"country": run.Country,
			"date":    run.Date,
		},
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", run.ResultRef, err)
	}
	m.logger.Debug("overlay mirrored", "bucket", m.bucket, "object", info.Key, "size", info.Size)
	return nil
}

// ensureBucket creates the bucket on first use. A failed check is retried on
// the next run.
func (m *Mirror) ensureBucket(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return nil
	}
	if err := m.createBucket(ctx); err != nil {
		return err
	}
	m.ready = true
	return nil
}

func (m *Mirror) createBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", m.bucket, err)
	}
	m.logger.Info("created bucket", "bucket", m.bucket)
	return nil
}
