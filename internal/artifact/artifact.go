// Package artifact persists the JSON the agent produces (chart specs and
// query results) to object storage and hands back shareable links.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/koustreak/aigis/internal/errs"
	"github.com/koustreak/aigis/internal/filestore"
)

// Kind is the key prefix an artifact is stored under.
type Kind string

const (
	KindChart  Kind = "charts"
	KindResult Kind = "results"
)

const (
	contentType    = "application/json"
	defaultLinkTTL = 24 * time.Hour
)

// Artifact locates a stored payload.
type Artifact struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

type Store struct {
	files   filestore.Store
	bucket  string
	linkTTL time.Duration
	newID   func() string
}

// Option customises a Store.
type Option func(*Store)

// WithLinkTTL sets how long presigned links stay valid.
func WithLinkTTL(ttl time.Duration) Option {
	return func(s *Store) { s.linkTTL = ttl }
}

func New(files filestore.Store, bucket string, opts ...Option) *Store {
	s := &Store{
		files:   files,
		bucket:  bucket,
		linkTTL: defaultLinkTTL,
		newID:   func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Prepare creates the bucket if needed.
func (s *Store) Prepare(ctx context.Context) error {
	return s.files.EnsureBucket(ctx, s.bucket)
}

// Save writes payload under <kind>/<uuid>.json. payload must be valid JSON.
func (s *Store) Save(ctx context.Context, kind Kind, payload []byte, meta map[string]string) (Artifact, error) {
	if !json.Valid(payload) {
		return Artifact{}, errs.New(errs.ErrKindInvalidInput, "artifact payload is not valid JSON")
	}

	key := fmt.Sprintf("%s/%s.json", kind, s.newID())
	info, err := s.files.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)),
		filestore.PutOptions{ContentType: contentType, Metadata: meta})
	if err != nil {
		return Artifact{}, err
	}

	url, err := s.files.PresignGetURL(ctx, s.bucket, key, s.linkTTL)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Key: key, URL: url, Size: info.Size}, nil
}

// Link issues a fresh presigned URL for an existing artifact.
func (s *Store) Link(ctx context.Context, key string) (string, error) {
	if _, err := s.files.StatObject(ctx, s.bucket, key); err != nil {
		return "", err
	}
	return s.files.PresignGetURL(ctx, s.bucket, key, s.linkTTL)
}

// Load reads an artifact back.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.files.GetObject(ctx, s.bucket, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(obj); err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "read artifact", err)
	}
	return buf.Bytes(), nil
}

// List returns the artifacts of one kind, at most limit of them (0 for all).
func (s *Store) List(ctx context.Context, kind Kind, limit int) ([]filestore.ObjectInfo, error) {
	return s.files.ListObjects(ctx, s.bucket, filestore.ListOptions{
		Prefix:    string(kind) + "/",
		Recursive: true,
		Limit:     limit,
	})
}
