// Package objectstore keeps the raw uploaded bytes so workers can re-fetch a
// payload and so a rejected file can be discarded.
package objectstore

import "context"

// Client is the storage capability the pipeline depends on.
type Client interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
