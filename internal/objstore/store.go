package objstore

import (
	"context"
	"errors"
)

// ErrNotExist reports that a key has no object. Callers treat it as an empty
// base, not a failure.
var ErrNotExist = errors.New("object does not exist")

// Store is the object-store contract the pipeline depends on.
type Store interface {
	// List returns all keys under prefix, in unspecified order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Read returns the object's bytes, or ErrNotExist.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write stores the object, replacing any previous content atomically.
	Write(ctx context.Context, key string, data []byte) error

	// Exists reports whether the key holds an object.
	Exists(ctx context.Context, key string) (bool, error)
}
