package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"caption-worker/internal/domain"
	"caption-worker/internal/domain/model"
	"caption-worker/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

// memLedger is a small in-memory JobLedger used by unit tests. Its
// ClaimQueued mirrors the conditional-update semantics of the real
// store: the status guard is checked under one lock.
type memLedger struct {
	mu       sync.Mutex
	jobs     map[string]*model.Job
	lessons  map[string]string
	statuses map[string][]model.JobStatus // observed transition order

	claimErr error
	findErr  error
	markErr  error // used by tests to simulate terminal-write failures
}

func newMemLedger() *memLedger {
	return &memLedger{
		jobs:     make(map[string]*model.Job),
		lessons:  make(map[string]string),
		statuses: make(map[string][]model.JobStatus),
	}
}

func (m *memLedger) put(job *model.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
}

func (m *memLedger) get(id string) *model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		cp := *j
		return &cp
	}
	return nil
}

func (m *memLedger) history(id string) []model.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.JobStatus(nil), m.statuses[id]...)
}

func (m *memLedger) ClaimQueued(ctx context.Context, id, owner string, now time.Time) (*model.Job, error) {
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != model.JobStatusQueued {
		return nil, domain.ErrNotClaimable
	}
	j.Status = model.JobStatusProcessing
	j.ClaimedBy = owner
	j.ClaimedAt = now
	j.UpdatedAt = now
	m.statuses[id] = append(m.statuses[id], j.Status)
	cp := *j
	return &cp, nil
}

func (m *memLedger) Find(ctx context.Context, id string) (*model.Job, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memLedger) SetStatus(ctx context.Context, id string, status model.JobStatus, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status = status
	j.UpdatedAt = now
	m.statuses[id] = append(m.statuses[id], status)
	return nil
}

func (m *memLedger) MarkCompleted(ctx context.Context, id string, outputs *model.Outputs, now time.Time) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status = model.JobStatusCompleted
	cp := *outputs
	j.Outputs = &cp
	j.UpdatedAt = now
	m.statuses[id] = append(m.statuses[id], j.Status)
	return nil
}

func (m *memLedger) MarkFailed(ctx context.Context, id, stage, msg string, now time.Time) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status = model.JobStatusFailed
	j.Error = model.TruncateError(fmt.Sprintf("%s: %s", stage, msg))
	j.UpdatedAt = now
	m.statuses[id] = append(m.statuses[id], j.Status)
	return nil
}

func (m *memLedger) LessonVideoURL(ctx context.Context, lessonID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	url, ok := m.lessons[lessonID]
	if !ok || url == "" {
		return "", domain.ErrNotFound
	}
	return url, nil
}

// fakeFetcher writes a real temp file so artifact cleanup is observable.
type fakeFetcher struct {
	dir     string
	content []byte
	err     error
	lastURL string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, expectedBytes int64) (adapter.FetchResult, error) {
	f.lastURL = url
	if f.err != nil {
		return adapter.FetchResult{}, f.err
	}
	tmp, err := os.CreateTemp(f.dir, "fake-*.media")
	if err != nil {
		return adapter.FetchResult{}, err
	}
	if _, err := tmp.Write(f.content); err != nil {
		tmp.Close()
		return adapter.FetchResult{}, err
	}
	tmp.Close()
	return adapter.FetchResult{Path: tmp.Name(), Bytes: int64(len(f.content)), Elapsed: 5 * time.Millisecond}, nil
}

type fakeTranscriber struct {
	vtt      []byte
	err      error
	lastPath string
	lastType string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path, contentType string) ([]byte, time.Duration, error) {
	f.lastPath = path
	f.lastType = contentType
	if f.err != nil {
		return nil, 0, f.err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, 0, fmt.Errorf("media file missing at transcribe time: %w", err)
	}
	return f.vtt, 3 * time.Millisecond, nil
}

type fakeStore struct {
	mu        sync.Mutex
	uploads   map[string][]byte // bucket/key -> content
	uploadErr error
	signErr   error
	base      string
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: make(map[string][]byte), base: "https://blob.test"}
}

func (f *fakeStore) Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[bucket+"/"+key] = b
	return nil
}

func (f *fakeStore) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return fmt.Sprintf("%s/sign/%s/%s?ttl=%d", f.base, bucket, key, int(ttl.Seconds())), nil
}

func (f *fakeStore) PublicURL(bucket, key string) string {
	return fmt.Sprintf("%s/public/%s/%s", f.base, bucket, key)
}

type fakeExtractor struct {
	err      error
	lastSrc  string
	lastDest string
}

func (f *fakeExtractor) ExtractAudio(ctx context.Context, source, dest string) error {
	f.lastSrc, f.lastDest = source, dest
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dest, []byte("RIFFfakewav"), 0o644)
}

// leftoverFiles lists regular files under dir, for cleanup assertions.
func leftoverFiles(dir string) []string {
	var out []string
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out
}
