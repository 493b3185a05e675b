package repository

import (
	"context"
	"time"

	"caption-worker/internal/domain/model"
)

// JobLedger is the authoritative record store for transcription jobs.
// All ownership safety comes from the store's conditional-update
// semantics; callers never lock in-process.
type JobLedger interface {
	// ClaimQueued atomically moves the job from queued to processing and
	// stamps the owner. Exactly one concurrent caller wins; the rest get
	// domain.ErrNotClaimable.
	ClaimQueued(ctx context.Context, id, owner string, now time.Time) (*model.Job, error)

	// Find loads a job by id. Returns domain.ErrNotFound when missing.
	Find(ctx context.Context, id string) (*model.Job, error)

	// SetStatus records live pipeline progress (downloading, transcribing).
	SetStatus(ctx context.Context, id string, status model.JobStatus, now time.Time) error

	// MarkCompleted writes the terminal completed status with outputs.
	MarkCompleted(ctx context.Context, id string, outputs *model.Outputs, now time.Time) error

	// MarkFailed writes the terminal failed status with a stage-prefixed,
	// truncated error message.
	MarkFailed(ctx context.Context, id, stage, msg string, now time.Time) error

	// LessonVideoURL returns the video_url of the lesson row referenced by
	// a job, the fallback input source when the job carries no locator.
	LessonVideoURL(ctx context.Context, lessonID string) (string, error)
}
