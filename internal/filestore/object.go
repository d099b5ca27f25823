package filestore

import (
	"io"
	"time"
)

// ObjectInfo describes one stored artifact, or a key prefix when IsDir is
// set by a non-recursive listing.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"` // -1 if unknown
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
	IsDir        bool      `json:"is_dir,omitempty"`
}

// Object streams an artifact's content. Close it after reading.
type Object interface {
	io.ReadCloser
	Info() *ObjectInfo
}

type ListOptions struct {
	Prefix string
	// Recursive lists every key under Prefix instead of grouping by "/".
	Recursive bool
	// Limit of 0 leaves paging to the backend.
	Limit int
	// StartAfter resumes a listing after the last key of the previous page.
	StartAfter string
}

// PutOptions carries the metadata stored with a new object.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string // x-amz-meta-*
}
