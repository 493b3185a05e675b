package model

import "time"

type JobStatus string

const (
	JobStatusQueued       JobStatus = "queued"
	JobStatusProcessing   JobStatus = "processing"
	JobStatusDownloading  JobStatus = "downloading"
	JobStatusTranscribing JobStatus = "transcribing"
	JobStatusCompleted    JobStatus = "completed"
	JobStatusFailed       JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// MaxErrorLen bounds the error text stored on a job record so a noisy
// provider response cannot produce unbounded ledger writes.
const MaxErrorLen = 500

// Job is one transcription unit of work as stored in the ledger.
// Rows are created externally in the queued status; this service only
// claims and advances them, it never inserts or deletes.
type Job struct {
	ID             string
	Status         JobStatus
	LessonID       string
	InputVideoPath string
	ClaimedBy      string
	ClaimedAt      time.Time
	UpdatedAt      time.Time
	Error          string
	Outputs        *Outputs
	CreatedAt      time.Time
}

// Outputs is written once on completion: the artifact reference plus
// per-stage metrics.
type Outputs struct {
	VTT     string  `json:"vtt"`
	Metrics Metrics `json:"metrics"`
}

type Metrics struct {
	DownloadBytes int64 `json:"download_bytes"`
	DownloadMS    int64 `json:"download_ms"`
	ExtractMS     int64 `json:"extract_ms,omitempty"`
	TranscribeMS  int64 `json:"transcribe_ms"`
	PublishMS     int64 `json:"publish_ms"`
}

// TruncateError clamps msg to MaxErrorLen runes-worth of bytes.
func TruncateError(msg string) string {
	if len(msg) <= MaxErrorLen {
		return msg
	}
	return msg[:MaxErrorLen]
}
