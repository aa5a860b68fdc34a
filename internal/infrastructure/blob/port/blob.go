package port

import (
	"context"
	"errors"
)

// ErrUnknownBucket is returned for a bucket the store was not opened with.
var ErrUnknownBucket = errors.New("blob: unknown bucket")

// Store is the object-storage contract: a durable write plus a public
// reference. Retry policy belongs to callers.
type Store interface {
	// Upload writes data under key in the named logical bucket.
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error

	// PublicURL returns the durable, publicly fetchable reference for a
	// previously uploaded key.
	PublicURL(bucket, key string) (string, error)

	// Close releases bucket handles.
	Close() error
}
