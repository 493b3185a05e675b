package fetcher

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

func TestFetch_SucceedsFirstAttempt(t *testing.T) {
	payload := bytes.Repeat([]byte("v"), 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f := New(Config{TempDir: t.TempDir()}, newTestLogger())
	res, err := f.Fetch(context.Background(), srv.URL, int64(len(payload)))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer os.Remove(res.Path)

	if res.Bytes != int64(len(payload)) {
		t.Errorf("expected %d bytes, got %d", len(payload), res.Bytes)
	}
	got, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("downloaded content does not match payload")
	}
}

func TestFetch_RetriesTransientFailuresWithBackoff(t *testing.T) {
	var calls int32
	payload := []byte("hello media")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	base := 20 * time.Millisecond
	f := New(Config{RetryCount: 3, RetryBase: base, TempDir: t.TempDir()}, newTestLogger())

	start := time.Now()
	res, err := f.Fetch(context.Background(), srv.URL, 0)
	if err != nil {
		t.Fatalf("Fetch failed after transient errors: %v", err)
	}
	defer os.Remove(res.Path)

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
	// Two failed attempts: backoff of base and 2*base must have elapsed.
	if elapsed := time.Since(start); elapsed < 3*base {
		t.Errorf("expected elapsed >= %v (backoff sum), got %v", 3*base, elapsed)
	}
}

func TestFetch_ExhaustsRetriesAndSurfacesLastError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{RetryCount: 2, RetryBase: time.Millisecond, TempDir: t.TempDir()}, newTestLogger())
	_, err := f.Fetch(context.Background(), srv.URL, 0)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestFetch_IntegrityCheck(t *testing.T) {
	tests := []struct {
		name     string
		actual   int
		expected int64
		wantOK   bool
	}{
		{"within one percent accepted", 995, 1000, true},
		{"ten percent rejected", 900, 1000, false},
		{"exact accepted", 1000, 1000, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write(bytes.Repeat([]byte("x"), tc.actual))
			}))
			defer srv.Close()

			f := New(Config{RetryCount: 2, RetryBase: time.Millisecond, TempDir: t.TempDir()}, newTestLogger())
			res, err := f.Fetch(context.Background(), srv.URL, tc.expected)
			if tc.wantOK {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				os.Remove(res.Path)
			} else if err == nil {
				t.Fatal("expected integrity failure")
			}
		})
	}
}

func TestFetch_RemovesPartialFileOnFailedAttempt(t *testing.T) {
	dir := t.TempDir()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Wrong size every time so each attempt is discarded.
		_, _ = w.Write([]byte("short"))
	}))
	defer srv.Close()

	f := New(Config{RetryCount: 2, RetryBase: time.Millisecond, TempDir: dir}, newTestLogger())
	if _, err := f.Fetch(context.Background(), srv.URL, 10000); err == nil {
		t.Fatal("expected failure")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no leftover files, found %d", len(entries))
	}
}

func TestFetch_ContextCancelStopsRetryLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(Config{RetryCount: 5, RetryBase: time.Hour, TempDir: t.TempDir()}, newTestLogger())
	if _, err := f.Fetch(ctx, srv.URL, 0); err == nil {
		t.Fatal("expected cancellation error")
	}
}
