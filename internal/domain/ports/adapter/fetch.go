package adapter

import (
	"context"
	"time"
)

// FetchResult describes a completed download to local storage.
type FetchResult struct {
	Path    string
	Bytes   int64
	Elapsed time.Duration
}

// MediaFetcher downloads a remote payload to a local temp file. When
// expectedBytes > 0 implementations verify the transferred size against
// it before accepting the download.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string, expectedBytes int64) (FetchResult, error)
}

// AudioExtractor converts a local video file into an audio track
// suitable for transcription.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, source, dest string) error
}
