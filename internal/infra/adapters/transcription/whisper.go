package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"caption-worker/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.Transcriber = (*WhisperAdapter)(nil)

// WhisperAdapter implements adapter.Transcriber using the OpenAI audio
// transcriptions API with subtitle (vtt) output.
type WhisperAdapter struct {
	apiKey string
	base   string // e.g., https://api.openai.com/v1
	model  string
	client *http.Client
}

func NewWhisperAdapter(apiKey, model, baseURL string, timeout time.Duration) (*WhisperAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "whisper-1"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &WhisperAdapter{
		apiKey: apiKey,
		base:   strings.TrimRight(baseURL, "/"),
		model:  model,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Transcribe streams the file at path as a multipart payload and returns
// the subtitle bytes. Any non-2xx provider response is a uniform failure
// carrying the status and a truncated body snippet.
func (w *WhisperAdapter) Transcribe(ctx context.Context, path, contentType string) ([]byte, time.Duration, error) {
	start := time.Now()

	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open media file: %w", err)
	}
	defer file.Close()

	// Pipe the multipart body so the file is never buffered in memory.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := createFilePart(mw, filepath.Base(path), contentType)
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = mw.WriteField("model", w.model)
		}
		if err == nil {
			err = mw.WriteField("response_format", "vtt")
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.base+"/audio/transcriptions", pr)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("whisper call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return nil, 0, fmt.Errorf("whisper failed: http %d %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	vtt, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read whisper response: %w", err)
	}
	if len(vtt) == 0 {
		return nil, 0, errors.New("whisper returned empty subtitle body")
	}
	return vtt, time.Since(start), nil
}

func createFilePart(mw *multipart.Writer, filename, contentType string) (io.Writer, error) {
	if contentType == "" {
		return mw.CreateFormFile("file", filename)
	}
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename=%q`, filename)}
	h["Content-Type"] = []string{contentType}
	return mw.CreatePart(h)
}
