package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var (
	// ErrBlobNotFound is returned by Open when no blob exists under the key.
	ErrBlobNotFound = errors.New("blob not found")
	// ErrInvalidKey is returned for keys that are absolute or escape the store root.
	ErrInvalidKey = errors.New("invalid blob key")
)

// BlobStore persists opaque file bodies under slash-separated relative keys.
type BlobStore interface {
	// Put writes the whole body under key. Either the blob is fully written or nothing is left behind.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// Open returns the blob body; the caller must close it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the blob. A missing blob is not an error.
	Delete(ctx context.Context, key string) error
	// Location returns a backend-specific locator for key, recorded alongside file metadata.
	Location(key string) string
}

// Key joins parts into a blob key: category/owner/name.
func Key(parts ...string) string {
	return path.Join(parts...)
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean != key || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return ErrInvalidKey
	}
	return nil
}
