// Package filestore defines the object storage interface artifacts are
// written through: chart specs and exported query results.
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	err = store.EnsureBucket(ctx, cfg.DefaultBucket)
package filestore

import (
	"context"
	"io"
	"time"
)

// Store is implemented by each object storage backend.
type Store interface {
	Ping(ctx context.Context) error
	Close() error

	// EnsureBucket creates bucket when it does not exist yet.
	EnsureBucket(ctx context.Context, bucket string) error

	// PutObject stores size bytes read from r at key inside bucket,
	// replacing any existing object.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts PutOptions) (*ObjectInfo, error)

	ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error)

	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// StatObject reads metadata only; a missing key is errs.ErrKindNotFound.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// PresignGetURL returns a download link valid for ttl that needs no
	// credentials.
	PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}
