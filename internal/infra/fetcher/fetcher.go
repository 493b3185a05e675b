package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"caption-worker/internal/domain/ports/adapter"
	"caption-worker/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time assurance the fetcher satisfies the port
var _ adapter.MediaFetcher = (*Fetcher)(nil)

// Config tunes the download behavior. Zero values fall back to the
// documented defaults.
type Config struct {
	RetryCount     int           // attempts before giving up (default 3)
	RetryBase      time.Duration // backoff seed, doubled per attempt (default 500ms)
	ConnectTimeout time.Duration // default 30s
	TotalTimeout   time.Duration // per attempt, default 900s
	TempDir        string        // default os.TempDir()
}

func (c Config) withDefaults() Config {
	if c.RetryCount <= 0 {
		c.RetryCount = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.TotalTimeout <= 0 {
		c.TotalTimeout = 900 * time.Second
	}
	return c
}

// Fetcher downloads remote payloads to local temp files with bounded
// retries, exponential backoff and an optional size-integrity check.
type Fetcher struct {
	cfg    Config
	client *http.Client
	log    *zerolog.Logger
}

func New(cfg Config, logger *zerolog.Logger) *Fetcher {
	cfg = cfg.withDefaults()
	flog := logger.With().Str("component", "Fetcher").Logger()
	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: cfg.ConnectTimeout,
				}).DialContext,
			},
		},
		log: &flog,
	}
}

// Fetch streams url into a temp file. When expectedBytes > 0 the
// downloaded size must be within 1% of it or the attempt is treated as
// transient and retried. The returned error after exhausting retries is
// the last underlying failure.
func (f *Fetcher) Fetch(ctx context.Context, url string, expectedBytes int64) (adapter.FetchResult, error) {
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt < f.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			metrics.IncFetchRetry()
			delay := f.cfg.RetryBase * (1 << (attempt - 1))
			f.log.Warn().Err(lastErr).Int("attempt", attempt).Dur("backoff", delay).Str("url", url).
				Msg("download failed, retrying")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return adapter.FetchResult{}, ctx.Err()
			}
		}

		path, n, err := f.fetchOnce(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		if expectedBytes > 0 && sizeDeviates(n, expectedBytes) {
			_ = os.Remove(path)
			lastErr = fmt.Errorf("size mismatch: got %d bytes, expected %d", n, expectedBytes)
			continue
		}
		metrics.AddDownloadBytes(n)
		return adapter.FetchResult{Path: path, Bytes: n, Elapsed: time.Since(start)}, nil
	}
	return adapter.FetchResult{}, fmt.Errorf("download failed after %d attempts: %w", f.cfg.RetryCount, lastErr)
}

// fetchOnce performs a single bounded attempt. The partial file is
// removed on every failure path so a retry starts clean.
func (f *Fetcher) fetchOnce(ctx context.Context, url string) (string, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.TotalTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", 0, fmt.Errorf("http %d fetching payload", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(f.cfg.TempDir, "capdl-*.media")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(tmp, resp.Body)
	cerr := tmp.Close()
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("stream body: %w", err)
	}
	if cerr != nil {
		_ = os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("close temp file: %w", cerr)
	}
	return tmp.Name(), n, nil
}

// sizeDeviates reports whether got is more than 1% away from want.
func sizeDeviates(got, want int64) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return float64(diff)/float64(want) > 0.01
}
