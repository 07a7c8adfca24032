package blob

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned when a key has no blob.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidKey is returned for empty keys and keys escaping the root.
	ErrInvalidKey = errors.New("invalid blob key")
)

// BlobStore holds opaque content addressed by slash-separated keys.
type BlobStore interface {
	// Put stores content under key, replacing any previous blob.
	Put(ctx context.Context, key string, reader io.Reader) error

	// Get opens the blob stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes a blob.
	Delete(ctx context.Context, key string) error
}
