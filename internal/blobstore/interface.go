package blobstore

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrBlobNotFound is returned when no content exists under a key.
	ErrBlobNotFound = errors.New("blob not found")
	// ErrBlobPermission is returned when content exists but cannot be read.
	ErrBlobPermission = errors.New("blob permission denied")
)

// PutResult describes one persisted document payload.
type PutResult struct {
	SHA256    string
	SizeBytes int64
	BlobKey   string
}

// BlobStore holds the bytes of document versions. Keys are content addresses,
// so identical uploads share storage.
type BlobStore interface {
	Put(ctx context.Context, r io.Reader) (PutResult, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
}
