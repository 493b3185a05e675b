package usecase

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"caption-worker/internal/domain"
	"caption-worker/internal/domain/model"
	"caption-worker/internal/domain/ports/adapter"
	"caption-worker/internal/domain/ports/repository"
	"caption-worker/internal/infra/logging"
	"caption-worker/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// PipelineExecutor drives a claimed job through the ordered stages
// (download → optional audio extraction → transcribe → publish) to a
// definitive terminal state. Any stage failure aborts the run and is
// recorded on the ledger with the failing stage name.
type PipelineExecutor struct {
	ledger        repository.JobLedger
	fetcher       adapter.MediaFetcher
	transcriber   adapter.Transcriber
	store         adapter.BlobStore
	extractor     adapter.AudioExtractor // nil disables the extract stage
	outputsBucket string
	videosBucket  string
	signedTTL     time.Duration
	log           *zerolog.Logger
}

func NewPipelineExecutor(
	ledger repository.JobLedger,
	fetcher adapter.MediaFetcher,
	transcriber adapter.Transcriber,
	store adapter.BlobStore,
	extractor adapter.AudioExtractor,
	outputsBucket, videosBucket string,
	signedTTL time.Duration,
	logger *zerolog.Logger,
) *PipelineExecutor {
	plog := logger.With().Str("component", "PipelineExecutor").Logger()
	if signedTTL <= 0 {
		signedTTL = 7 * 24 * time.Hour
	}
	return &PipelineExecutor{
		ledger:        ledger,
		fetcher:       fetcher,
		transcriber:   transcriber,
		store:         store,
		extractor:     extractor,
		outputsBucket: outputsBucket,
		videosBucket:  videosBucket,
		signedTTL:     signedTTL,
		log:           &plog,
	}
}

// Run executes one claimed job to a terminal state and blocks until it
// gets there. The runner calls it asynchronously; tests call it directly.
func (uc *PipelineExecutor) Run(ctx context.Context, job *model.Job, input model.InputRef) error {
	ctx = logging.WithJobID(ctx, job.ID)
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "PipelineExecutor.Run")()

	run := &model.PipelineRun{Job: job, Input: input, StartedAt: time.Now()}
	defer uc.removeArtifacts(run)

	// Stage: download
	uc.setStatus(ctx, job.ID, model.JobStatusDownloading)
	srcURL, err := uc.resolveInput(ctx, job, input)
	if err != nil {
		return uc.fail(ctx, job.ID, domain.StageDownload, err)
	}
	res, err := uc.fetcher.Fetch(ctx, srcURL, input.ExpectedBytes)
	if err != nil {
		return uc.fail(ctx, job.ID, domain.StageDownload, err)
	}
	run.VideoPath = res.Path
	run.Metrics.DownloadBytes = res.Bytes
	run.Metrics.DownloadMS = res.Elapsed.Milliseconds()
	metrics.ObserveStage(domain.StageDownload, run.Metrics.DownloadMS)
	log.Info().Int64("bytes", res.Bytes).Dur("elapsed", res.Elapsed).Msg("download complete")

	// Stage: extract (optional)
	mediaPath, contentType := run.VideoPath, input.ContentType
	if uc.extractor != nil {
		start := time.Now()
		dest := run.VideoPath + ".wav"
		if err := uc.extractor.ExtractAudio(ctx, run.VideoPath, dest); err != nil {
			return uc.fail(ctx, job.ID, domain.StageExtract, err)
		}
		run.AudioPath = dest
		run.Metrics.ExtractMS = time.Since(start).Milliseconds()
		metrics.ObserveStage(domain.StageExtract, run.Metrics.ExtractMS)
		mediaPath, contentType = dest, "audio/wav"
	}

	// Stage: transcribe
	uc.setStatus(ctx, job.ID, model.JobStatusTranscribing)
	vtt, elapsed, err := uc.transcriber.Transcribe(ctx, mediaPath, contentType)
	if err != nil {
		return uc.fail(ctx, job.ID, domain.StageTranscribe, err)
	}
	run.Metrics.TranscribeMS = elapsed.Milliseconds()
	metrics.ObserveStage(domain.StageTranscribe, run.Metrics.TranscribeMS)

	// Stage: publish
	start := time.Now()
	key := job.ID + ".vtt"
	if err := uc.store.Upload(ctx, uc.outputsBucket, key, bytes.NewReader(vtt), "text/vtt"); err != nil {
		return uc.fail(ctx, job.ID, domain.StagePublish, err)
	}
	vttURL, err := uc.store.SignedURL(ctx, uc.outputsBucket, key, uc.signedTTL)
	if err != nil {
		return uc.fail(ctx, job.ID, domain.StagePublish, err)
	}
	run.Metrics.PublishMS = time.Since(start).Milliseconds()
	metrics.ObserveStage(domain.StagePublish, run.Metrics.PublishMS)

	// Finalize. A failed terminal write is logged and swallowed: the job
	// may be left in a non-terminal status and needs external audit.
	outputs := &model.Outputs{VTT: vttURL, Metrics: run.Metrics}
	if err := uc.ledger.MarkCompleted(ctx, job.ID, outputs, time.Now().UTC()); err != nil {
		log.Error().Err(err).Msg("ledger write failed, job may be stuck in transcribing")
	}
	metrics.IncJobFinished(string(model.JobStatusCompleted), "")
	log.Info().Str("vtt", vttURL).Msg("job completed")
	return nil
}

// resolveInput picks the source URL for the run, in priority order: the
// signed URL from the enqueue request, the job's input_video_path
// (direct URL or storage key in the videos bucket), then the lesson
// row's video_url.
func (uc *PipelineExecutor) resolveInput(ctx context.Context, job *model.Job, input model.InputRef) (string, error) {
	if isHTTP(input.URL) {
		return input.URL, nil
	}
	if p := job.InputVideoPath; p != "" {
		if isHTTP(p) {
			return p, nil
		}
		return uc.store.PublicURL(uc.videosBucket, p), nil
	}
	if job.LessonID != "" {
		url, err := uc.ledger.LessonVideoURL(ctx, job.LessonID)
		if err != nil {
			return "", fmt.Errorf("lesson video url: %w", err)
		}
		return url, nil
	}
	return "", fmt.Errorf("no input source for job")
}

// fail records the terminal failed state with a stage-tagged error. The
// ledger write itself is best effort.
func (uc *PipelineExecutor) fail(ctx context.Context, jobID, stage string, cause error) error {
	log := logging.With(ctx, uc.log)
	log.Error().Err(cause).Str("stage", stage).Msg("pipeline stage failed")
	metrics.IncJobFinished(string(model.JobStatusFailed), stage)
	if err := uc.ledger.MarkFailed(ctx, jobID, stage, cause.Error(), time.Now().UTC()); err != nil {
		log.Error().Err(err).Msg("ledger write failed, job may be stuck in a live status")
	}
	return domain.NewStageError(stage, cause)
}

// setStatus publishes live progress; failures are logged, not fatal.
func (uc *PipelineExecutor) setStatus(ctx context.Context, jobID string, status model.JobStatus) {
	if err := uc.ledger.SetStatus(ctx, jobID, status, time.Now().UTC()); err != nil {
		logging.With(ctx, uc.log).Warn().Err(err).Str("status", string(status)).Msg("progress update failed")
	}
}

func (uc *PipelineExecutor) removeArtifacts(run *model.PipelineRun) {
	for _, p := range []string{run.VideoPath, run.AudioPath} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			uc.log.Warn().Err(err).Str("path", p).Msg("temp artifact cleanup failed")
		}
	}
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
