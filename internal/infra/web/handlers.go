package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"caption-worker/internal/domain"
	"caption-worker/internal/domain/model"
	"caption-worker/internal/infra/logging"
	"caption-worker/internal/infra/redis"

	"github.com/google/uuid"
)

type enqueueRequest struct {
	JobID       string `json:"job_id"`
	SignedURL   string `json:"signed_url,omitempty"`
	Bytes       int64  `json:"bytes,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

type enqueueResponse struct {
	OK      bool   `json:"ok"`
	Claimed bool   `json:"claimed"`
	JobID   string `json:"job_id"`
}

// handleEnqueue is the synchronous half of the dispatch protocol: it
// answers only the ownership question. A lost race, a finished job, or
// an unknown id all produce 202 with claimed=false; processing outcome
// is never part of this response.
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": "method not allowed"})
		return
	}
	ctx := logging.WithTraceID(r.Context(), uuid.NewString())

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, redis.EnqueueKey(callerKey(r)), s.rateLimit, s.rateWindow)
		if err != nil {
			// Fail open: a limiter outage must not block dispatch.
			s.log.Warn().Err(err).Msg("rate limiter unavailable")
		} else if !allowed {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"ok": false, "error": "rate limited"})
			return
		}
	}

	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid request body"})
		return
	}

	res, err := s.claimer.Claim(ctx, req.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "job_id is not a valid uuid"})
			return
		}
		s.log.Error().Err(err).Str("job_id", req.JobID).Msg("claim failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "claim failed"})
		return
	}

	if res.Claimed {
		s.dispatcher.Dispatch(res.Job, model.InputRef{
			URL:           req.SignedURL,
			ExpectedBytes: req.Bytes,
			ContentType:   req.ContentType,
		})
	}
	writeJSON(w, http.StatusAccepted, enqueueResponse{OK: true, Claimed: res.Claimed, JobID: req.JobID})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		HealthInfo
	}{OK: true, HealthInfo: s.health})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ts": time.Now().UTC().Format(time.RFC3339)})
}
