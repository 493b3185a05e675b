package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"caption-worker/internal/domain/model"
	"caption-worker/internal/usecase"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Claimer attempts synchronous ownership of a queued job.
type Claimer interface {
	Claim(ctx context.Context, jobID string) (usecase.ClaimResult, error)
}

// Dispatcher hands an owned job to the async pipeline and returns
// immediately.
type Dispatcher interface {
	Dispatch(job *model.Job, input model.InputRef)
}

// Limiter is the fixed-window rate limiter guarding /enqueue. A nil
// Limiter disables rate limiting.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// HealthInfo reports which pieces of configuration were present at
// boot. It is static for the process lifetime.
type HealthInfo struct {
	Database      bool `json:"database_configured"`
	SupabaseURL   bool `json:"supabase_url_configured"`
	SupabaseKey   bool `json:"supabase_key_configured"`
	OpenAIKey     bool `json:"openai_key_configured"`
	Redis         bool `json:"redis_configured"`
	FFmpeg        bool `json:"ffmpeg_available"`
	WorkerToken   bool `json:"worker_token_configured"`
	MaxConcurrent int  `json:"max_concurrent"`
}

type Server struct {
	claimer    Claimer
	dispatcher Dispatcher
	limiter    Limiter
	rateLimit  int
	rateWindow time.Duration
	token      string // empty means open access
	health     HealthInfo
	log        *zerolog.Logger
}

func NewServer(
	claimer Claimer,
	dispatcher Dispatcher,
	limiter Limiter,
	rateLimit int,
	rateWindow time.Duration,
	token string,
	health HealthInfo,
	logger *zerolog.Logger,
) *Server {
	wlog := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		claimer:    claimer,
		dispatcher: dispatcher,
		limiter:    limiter,
		rateLimit:  rateLimit,
		rateWindow: rateWindow,
		token:      token,
		health:     health,
		log:        &wlog,
	}
}

// RegisterRoutes sets up the worker surface. Only /enqueue is guarded;
// health and metrics stay open for probes and scrapers.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/enqueue", s.authMiddleware(http.HandlerFunc(s.handleEnqueue)))
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ping", s.handlePing)
	mux.Handle("/metrics", promhttp.Handler())
}

// authMiddleware checks the caller's token against the configured
// worker token. No configured token means open access.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		if callerToken(r) != s.token {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// callerToken extracts the presented credential: Authorization: Bearer
// takes precedence, X-Worker-Token is the fallback.
func callerToken(r *http.Request) string {
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		parts := strings.SplitN(hdr, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return r.Header.Get("X-Worker-Token")
}

// callerKey identifies a caller for rate limiting: the token when one
// was presented, the remote host otherwise.
func callerKey(r *http.Request) string {
	if tok := callerToken(r); tok != "" {
		return tok
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
