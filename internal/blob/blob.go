// Package blob abstracts the durable attachment store. Blobs are written
// once under a caller-chosen name and never mutated or deleted here.
package blob

import "context"

type Store interface {
	// Write durably stores data under name.
	Write(ctx context.Context, name string, data []byte) error

	// Read returns the bytes previously written under name.
	Read(ctx context.Context, name string) ([]byte, error)
}
