package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"caption-worker/internal/domain"
	"caption-worker/internal/domain/model"
	"caption-worker/internal/domain/ports/repository"
	"caption-worker/internal/infra/logging"
	"caption-worker/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ClaimResult is the synchronous outcome of a claim attempt. Losing the
// race is not an error: Claimed is false and Job is nil.
type ClaimResult struct {
	Claimed bool
	Job     *model.Job
}

// ClaimUseCase implements the atomic ownership hand-off: one and only
// one caller moves a job from queued to processing.
type ClaimUseCase struct {
	ledger repository.JobLedger
	owner  string
	log    *zerolog.Logger
}

func NewClaimUseCase(ledger repository.JobLedger, owner string, logger *zerolog.Logger) *ClaimUseCase {
	clog := logger.With().Str("component", "ClaimUseCase").Logger()
	return &ClaimUseCase{ledger: ledger, owner: owner, log: &clog}
}

// Claim validates the id, then issues the single conditional transition.
// Malformed ids are rejected before any ledger access and produce no
// side effects.
func (uc *ClaimUseCase) Claim(ctx context.Context, jobID string) (ClaimResult, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		metrics.IncClaim("invalid")
		return ClaimResult{}, fmt.Errorf("%w: job_id is not a valid uuid", domain.ErrInvalidArgument)
	}

	log := logging.With(ctx, uc.log)
	job, err := uc.ledger.ClaimQueued(ctx, jobID, uc.owner, time.Now().UTC())
	if err == nil {
		metrics.IncClaim("owned")
		log.Info().Str("job_id", jobID).Msg("job claimed")
		return ClaimResult{Claimed: true, Job: job}, nil
	}
	if !errors.Is(err, domain.ErrNotClaimable) {
		return ClaimResult{}, fmt.Errorf("claim %s: %w", jobID, err)
	}

	// The conditional update matched nothing. Re-read to tell a lost
	// race or duplicate retry apart from a ledger fault; either way the
	// caller gets a clean "not available", never an error.
	if _, err := uc.ledger.Find(ctx, jobID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return ClaimResult{}, fmt.Errorf("claim re-read %s: %w", jobID, err)
	}
	metrics.IncClaim("lost")
	log.Debug().Str("job_id", jobID).Msg("claim not available")
	return ClaimResult{Claimed: false}, nil
}
