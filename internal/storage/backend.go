package storage

import (
	"context"
	"io"
	"time"
)

// Backend is the interface that wraps the blob store operations.
type Backend interface {
	// Name returns the name of the backend implementation.
	Name() string

	// Upload stores the blob under the given key.
	Upload(ctx context.Context, key, contentType string, r io.Reader) error
	// SignedURL returns a time-limited URL granting read access to the blob.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Remove deletes the blob.
	Remove(ctx context.Context, key string) error
}
