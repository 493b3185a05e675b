package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"caption-worker/internal/config"
	"caption-worker/internal/domain/ports/adapter"
	"caption-worker/internal/infra/adapters/storage"
	"caption-worker/internal/infra/adapters/transcription"
	pg "caption-worker/internal/infra/db/postgres"
	"caption-worker/internal/infra/fetcher"
	"caption-worker/internal/infra/logging"
	"caption-worker/internal/infra/media"
	"caption-worker/internal/infra/metrics"
	red "caption-worker/internal/infra/redis"
	"caption-worker/internal/infra/web"
	"caption-worker/internal/infra/worker"
	"caption-worker/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logging)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pool.Close()
	ledger := pg.NewJobRepo(pool)

	// ---- Redis (optional rate limiter) ----
	var limiter web.Limiter
	redisConfigured := cfg.Redis.URL != ""
	if redisConfigured {
		client, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer client.Close()
		limiter = red.NewRateLimiter(client)
		logger.Info().Str("addr", cfg.Redis.URL).Msg("enqueue rate limiter enabled")
	}

	// ---- Adapters ----
	store, err := storage.NewSupabaseStore(cfg.Storage.URL, cfg.Storage.ServiceKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("supabase store init failed")
	}
	transcriber, err := transcription.NewWhisperAdapter(
		cfg.Transcription.OpenAIKey,
		cfg.Transcription.Model,
		cfg.Transcription.BaseURL,
		cfg.Transcription.Timeout,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("whisper adapter init failed")
	}
	fetch := fetcher.New(fetcher.Config{
		RetryCount:     cfg.Pipeline.RetryCount,
		RetryBase:      cfg.Pipeline.RetryBase,
		ConnectTimeout: cfg.Pipeline.ConnectTimeout,
		TotalTimeout:   cfg.Pipeline.TotalTimeout,
	}, logger)

	ffmpegPath := media.Detect()
	var extractor adapter.AudioExtractor
	if cfg.Pipeline.ExtractAudio {
		if ffmpegPath == "" {
			logger.Fatal().Msg("pipeline.extract_audio enabled but ffmpeg not found on PATH")
		}
		extractor = media.NewExtractor(ffmpegPath)
		logger.Info().Str("ffmpeg", ffmpegPath).Msg("audio extraction enabled")
	}

	// ---- Use cases ----
	claimUC := usecase.NewClaimUseCase(ledger, cfg.Server.WorkerName, logger)
	pipelineUC := usecase.NewPipelineExecutor(
		ledger, fetch, transcriber, store, extractor,
		cfg.Storage.OutputsBucket, cfg.Storage.VideosBucket,
		cfg.Pipeline.SignedURLTTL, logger,
	)

	// ---- Pipeline runner ----
	gate := worker.NewGate(cfg.Pipeline.MaxConcurrent)
	runner := worker.NewRunner(ctx, gate, pipelineUC.Run, logger)

	// ---- HTTP server ----
	srv := web.NewServer(
		claimUC, runner, limiter,
		cfg.Redis.RateLimit, cfg.Redis.RateWindow,
		cfg.Server.WorkerToken,
		web.HealthInfo{
			Database:      cfg.Database.URL != "",
			SupabaseURL:   cfg.Storage.URL != "",
			SupabaseKey:   cfg.Storage.ServiceKey != "",
			OpenAIKey:     cfg.Transcription.OpenAIKey != "",
			Redis:         redisConfigured,
			FFmpeg:        ffmpegPath != "",
			WorkerToken:   cfg.Server.WorkerToken != "",
			MaxConcurrent: cfg.Pipeline.MaxConcurrent,
		},
		logger,
	)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: mux}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown error")
	}
	if !runner.Drain(30 * time.Second) {
		logger.Warn().Msg("pipelines still in flight at shutdown deadline")
	}
	cancel()
}
