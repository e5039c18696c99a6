// Package storage defines the artifact/blob store interface (spec §6.3),
// implemented by internal/storage/s3 and internal/storage/local.
package storage

import "context"

// Store puts and fetches opaque blobs keyed by bucket+key, returning a URI
// the caller can persist (e.g. into an Artifact.URI column) and later
// dereference without knowing which backend is in play.
type Store interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) (uri string, err error)
	Get(ctx context.Context, uri string) ([]byte, error)
}
