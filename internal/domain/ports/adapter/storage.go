package adapter

import (
	"context"
	"io"
	"time"
)

// BlobStore is the object storage boundary: upload plus time-limited
// signed reference issuance. Implementations return normalized results;
// the core never inspects provider response shapes.
type BlobStore interface {
	Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
	SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	// PublicURL derives the unauthenticated URL for a key in a public
	// bucket. Purely syntactic, no network call.
	PublicURL(bucket, key string) string
}
