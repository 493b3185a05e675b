package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"caption-worker/internal/domain"
	"caption-worker/internal/domain/model"
	"caption-worker/internal/domain/ports/repository"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.JobLedger = (*jobRepo)(nil)

// jobRepo implements repository.JobLedger on the transcription_jobs
// table. All claim safety comes from the conditional UPDATE; nothing is
// locked in-process.
type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

const jobColumns = `id, status, COALESCE(lesson_id, ''), COALESCE(input_video_path, ''),
COALESCE(claimed_by, ''), claimed_at, updated_at, COALESCE(error, ''), created_at`

func (r *jobRepo) ClaimQueued(ctx context.Context, id, owner string, now time.Time) (*model.Job, error) {
	const q = `
UPDATE transcription_jobs
SET status = 'processing', claimed_by = $2, claimed_at = $3, updated_at = $3
WHERE id = $1 AND status = 'queued'
RETURNING ` + jobColumns + `;`

	job, err := scanJob(r.pool.QueryRow(ctx, q, id, owner, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotClaimable
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, fmt.Errorf("postgres ClaimQueued (%s): %w", pgErr.Code, err)
		}
		return nil, fmt.Errorf("postgres ClaimQueued: %w", err)
	}
	return job, nil
}

func (r *jobRepo) Find(ctx context.Context, id string) (*model.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM transcription_jobs WHERE id = $1;`

	job, err := scanJob(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres Find job: %w", err)
	}
	return job, nil
}

func (r *jobRepo) SetStatus(ctx context.Context, id string, status model.JobStatus, now time.Time) error {
	const q = `UPDATE transcription_jobs SET status = $2, updated_at = $3 WHERE id = $1;`

	ct, err := r.pool.Exec(ctx, q, id, string(status), now)
	if err != nil {
		return fmt.Errorf("postgres SetStatus: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *jobRepo) MarkCompleted(ctx context.Context, id string, outputs *model.Outputs, now time.Time) error {
	const q = `
UPDATE transcription_jobs
SET status = 'completed', outputs = $2::jsonb, error = NULL, updated_at = $3
WHERE id = $1;`

	b, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}
	ct, err := r.pool.Exec(ctx, q, id, string(b), now)
	if err != nil {
		return fmt.Errorf("postgres MarkCompleted: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *jobRepo) MarkFailed(ctx context.Context, id, stage, msg string, now time.Time) error {
	const q = `
UPDATE transcription_jobs
SET status = 'failed', error = $2, updated_at = $3
WHERE id = $1;`

	text := model.TruncateError(fmt.Sprintf("%s: %s", stage, msg))
	ct, err := r.pool.Exec(ctx, q, id, text, now)
	if err != nil {
		return fmt.Errorf("postgres MarkFailed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *jobRepo) LessonVideoURL(ctx context.Context, lessonID string) (string, error) {
	const q = `SELECT COALESCE(video_url, '') FROM lessons WHERE id = $1;`

	var url string
	if err := r.pool.QueryRow(ctx, q, lessonID).Scan(&url); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("postgres LessonVideoURL: %w", err)
	}
	if url == "" {
		return "", domain.ErrNotFound
	}
	return url, nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		job       model.Job
		statusStr string
		claimedAt sql.NullTime
	)
	err := row.Scan(
		&job.ID, &statusStr, &job.LessonID, &job.InputVideoPath,
		&job.ClaimedBy, &claimedAt, &job.UpdatedAt, &job.Error, &job.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Status = model.JobStatus(statusStr)
	if claimedAt.Valid {
		job.ClaimedAt = claimedAt.Time
	}
	return &job, nil
}
