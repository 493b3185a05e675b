package worker

import (
	"context"
	"sync"
	"time"

	"caption-worker/internal/domain/model"
	"caption-worker/internal/infra/logging"

	"github.com/rs/zerolog"
)

// PipelineFunc executes one claimed job to a terminal state.
type PipelineFunc func(ctx context.Context, job *model.Job, input model.InputRef) error

// Runner decouples pipeline execution from the HTTP request that
// acknowledged the claim: Dispatch returns immediately and the run
// proceeds on its own goroutine under the admission gate.
type Runner struct {
	base context.Context
	gate *Gate
	run  PipelineFunc
	wg   sync.WaitGroup
	log  *zerolog.Logger
}

// NewRunner binds the runner to base, which outlives individual HTTP
// requests; cancelling it aborts in-flight network calls on shutdown.
func NewRunner(base context.Context, gate *Gate, run PipelineFunc, logger *zerolog.Logger) *Runner {
	rlog := logger.With().Str("component", "Runner").Logger()
	return &Runner{base: base, gate: gate, run: run, log: &rlog}
}

// Dispatch schedules the pipeline for a freshly claimed job and returns.
// Gate acquisition happens inside the spawned goroutine, after the claim
// has already been acknowledged; a slot is released on every exit path
// including panics, so a crashing run cannot shrink capacity.
func (r *Runner) Dispatch(job *model.Job, input model.InputRef) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx := logging.WithJobID(r.base, job.ID)
		log := logging.With(ctx, r.log)

		if err := r.gate.Acquire(ctx); err != nil {
			log.Warn().Err(err).Msg("gate acquisition aborted, job left in processing")
			return
		}
		defer r.gate.Release()
		defer func() {
			if p := recover(); p != nil {
				log.Error().Interface("panic", p).Msg("pipeline panicked")
			}
		}()

		if err := r.run(ctx, job, input); err != nil {
			log.Error().Err(err).Msg("pipeline run failed")
		}
	}()
}

// Drain waits for in-flight pipelines to finish, up to timeout.
func (r *Runner) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
