package adapter

import (
	"context"
	"time"
)

// Transcriber turns a local media file into subtitle bytes. The call is
// atomic from the caller's perspective: any non-success provider
// response is a uniform failure.
type Transcriber interface {
	Transcribe(ctx context.Context, path, contentType string) ([]byte, time.Duration, error)
}
