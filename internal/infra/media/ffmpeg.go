package media

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// FFmpegCommand is the binary looked up on PATH at startup.
const FFmpegCommand = "ffmpeg"

// Detect returns the resolved ffmpeg path, or "" when the binary is not
// available. Audio extraction must be disabled when Detect fails rather
// than attempted and failing per job.
func Detect() string {
	path, err := exec.LookPath(FFmpegCommand)
	if err != nil {
		return ""
	}
	return path
}

// Extractor converts a video file into a mono 16kHz WAV suitable for
// speech transcription.
type Extractor struct {
	ffmpeg string
}

func NewExtractor(ffmpegPath string) *Extractor {
	return &Extractor{ffmpeg: ffmpegPath}
}

// ExtractAudio writes the extracted audio stream of source to dest.
func (e *Extractor) ExtractAudio(ctx context.Context, source, dest string) error {
	if e.ffmpeg == "" {
		return fmt.Errorf("ffmpeg not available")
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
	cmd := exec.CommandContext(ctx, e.ffmpeg, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("extract audio: %w", err)
		}
		return fmt.Errorf("extract audio: %w: %s", err, msg)
	}
	return nil
}
