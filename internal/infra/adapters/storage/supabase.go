package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"caption-worker/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.BlobStore = (*SupabaseStore)(nil)

// SupabaseStore implements adapter.BlobStore against the Supabase
// Storage REST API.
type SupabaseStore struct {
	base       string // project base URL, e.g. https://xyz.supabase.co
	serviceKey string
	client     *http.Client
}

func NewSupabaseStore(baseURL, serviceKey string) (*SupabaseStore, error) {
	if baseURL == "" || serviceKey == "" {
		return nil, errors.New("supabase url or service key empty")
	}
	return &SupabaseStore{
		base:       strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		client:     &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Upload writes body to bucket/key with upsert semantics, so repeated
// publishes for the same key overwrite rather than accumulate.
func (s *SupabaseStore) Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	u := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.base, bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("x-upsert", "true")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("upload: %s", errorSnippet(resp))
	}
	return nil
}

// SignedURL issues a time-limited reference to bucket/key.
func (s *SupabaseStore) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	u := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", s.base, bucket, key)
	b, _ := json.Marshal(struct {
		ExpiresIn int `json:"expiresIn"`
	}{ExpiresIn: int(ttl.Seconds())})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("build sign request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("sign url: %s", errorSnippet(resp))
	}

	var payload struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode sign response: %w", err)
	}
	if payload.SignedURL == "" {
		return "", errors.New("sign url: empty signedURL in response")
	}
	// The API returns a path relative to the storage root.
	return s.base + "/storage/v1" + payload.SignedURL, nil
}

// PublicURL derives the unauthenticated URL for a key in a public bucket.
func (s *SupabaseStore) PublicURL(bucket, key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.base, bucket, key)
}

// errorSnippet renders "http <code>: <body>" with the body clamped so a
// noisy provider error cannot blow up logs or ledger writes.
func errorSnippet(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
	snippet := strings.TrimSpace(string(b))
	if snippet == "" {
		return fmt.Sprintf("http %d", resp.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", resp.StatusCode, snippet)
}
