package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Retrieve when the named object has never been
// stored. Callers treat it as "start empty", not as a failure.
var ErrNotFound = errors.New("storage: object not found")

// Backend is the durable medium behind the dedup store. Implementations must
// make Store atomic enough that a crash mid-write never leaves a partially
// written object readable.
type Backend interface {
	Store(ctx context.Context, name string, data []byte) error
	Retrieve(ctx context.Context, name string) ([]byte, error)
}
