// Package storage holds the object stores that receive audit ledger
// exports.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get for a missing key
var ErrNotFound = errors.New("storage: object not found")

// Archive is a write-once object store for exported batches
type Archive interface {
	// Put stores the object at key, replacing any previous object.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Get opens the object at key. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
}
