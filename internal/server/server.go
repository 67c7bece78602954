// Package server is the HTTP transport for the Candor analysis pipeline.
//
// The surface is deliberately thin: one streaming analyze endpoint carried
// over Server-Sent Events, baseline profile CRUD, health probes, and the
// Prometheus scrape endpoint. All analysis semantics live in the runner and
// the services; the server only translates HTTP into an [analysis.Context]
// and the event stream back into SSE frames.
package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/submit4201/candor/internal/analysis"
	"github.com/submit4201/candor/internal/health"
	"github.com/submit4201/candor/internal/observe"
	"github.com/submit4201/candor/internal/runner"
	"github.com/submit4201/candor/pkg/store"
)

// maxRequestBytes bounds the request body, which may carry inline audio.
const maxRequestBytes = 32 << 20

// sessionAppendTimeout bounds the history write after the stream ends. The
// write runs on a detached context so a client disconnect cannot lose it.
const sessionAppendTimeout = 10 * time.Second

// Server wires the runner and the stores to HTTP routes.
type Server struct {
	runner    *runner.Runner
	baselines store.BaselineStore
	sessions  store.SessionStore
	metrics   *observe.Metrics
	log       *slog.Logger
	checkers  []health.Checker
}

// Option configures a [Server].
type Option func(*Server)

// WithStores attaches persistence. Either store may be nil; the matching
// features (baseline CRUD, session history) then respond 503 or are skipped.
func WithStores(baselines store.BaselineStore, sessions store.SessionStore) Option {
	return func(s *Server) {
		s.baselines = baselines
		s.sessions = sessions
	}
}

// WithMetrics attaches HTTP metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithHealthCheckers adds readiness checks to /readyz.
func WithHealthCheckers(checkers ...health.Checker) Option {
	return func(s *Server) { s.checkers = append(s.checkers, checkers...) }
}

// New builds a Server around the given runner.
func New(r *runner.Runner, opts ...Option) *Server {
	s := &Server{runner: r, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the full route tree, wrapped in the observability
// middleware when metrics are attached.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("GET /baselines/{user}", s.handleGetBaseline)
	mux.HandleFunc("PUT /baselines/{user}", s.handlePutBaseline)
	mux.HandleFunc("DELETE /baselines/{user}", s.handleDeleteBaseline)
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(s.checkers...).Register(mux)

	if s.metrics == nil {
		return mux
	}
	return observe.Middleware(s.metrics)(mux)
}

// analyzeRequest is the JSON body of POST /analyze. The same fields arrive as
// form values when the request is multipart, with the audio as a file part
// named "audio" instead of a base64 string.
type analyzeRequest struct {
	Transcript      string                    `json:"transcript"`
	TranscriptFinal bool                      `json:"transcript_final"`
	AudioBase64     string                    `json:"audio_base64"`
	MimeType        string                    `json:"mime_type"`
	SessionID       string                    `json:"session_id"`
	UserID          string                    `json:"user_id"`
	Baseline        *analysis.BaselineProfile `json:"baseline_profile"`
	SpeakerSegments []analysis.SpeakerSegment `json:"speaker_segments"`
	Config          map[string]any            `json:"config"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, audio, err := parseAnalyzeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, analysis.ErrInvalidInput, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, analysis.ErrInternal, "streaming unsupported by connection")
		return
	}

	meta := analysis.Meta{
		RequestID: uuid.NewString(),
		SessionID: req.SessionID,
		UserID:    req.UserID,
		MimeType:  req.MimeType,
		Baseline:  req.Baseline,
		Config:    req.Config,
	}
	log := s.log.With("request_id", meta.RequestID)

	// An inline baseline wins over the stored one.
	if meta.Baseline == nil && s.baselines != nil && req.UserID != "" {
		profile, err := s.baselines.GetBaseline(r.Context(), req.UserID)
		if err != nil {
			log.Warn("baseline lookup failed, proceeding uncalibrated", "user_id", req.UserID, "error", err)
		} else {
			meta.Baseline = profile
		}
	}
	if s.sessions != nil && req.SessionID != "" {
		summary, err := s.sessions.Summary(r.Context(), req.SessionID)
		if err != nil {
			log.Warn("session summary lookup failed", "session_id", req.SessionID, "error", err)
		} else {
			meta.SessionSummary = summary
		}
	}

	actx := analysis.NewContext(req.Transcript, audio, meta)
	if req.TranscriptFinal && req.Transcript != "" {
		actx.FinalizeTranscript(req.Transcript)
	}
	if len(req.SpeakerSegments) > 0 {
		actx.SetSpeakerSegments(req.SpeakerSegments)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Request-ID", meta.RequestID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range s.runner.Run(r.Context(), actx) {
		data, err := sonic.Marshal(ev)
		if err != nil {
			log.Error("event marshal failed", "event", ev.Event, "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event, data); err != nil {
			// Client gone; keep draining so the runner can finish and the
			// session entry below still gets written.
			continue
		}
		flusher.Flush()
	}

	s.appendSessionEntry(r.Context(), actx)
}

// appendSessionEntry records the finished analysis in the session history.
func (s *Server) appendSessionEntry(reqCtx context.Context, actx *analysis.Context) {
	meta := actx.Meta()
	if s.sessions == nil || meta.SessionID == "" {
		return
	}
	results := actx.ServiceResults()
	if len(results) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(reqCtx), sessionAppendTimeout)
	defer cancel()

	flat := make(map[string]any, len(results))
	for name, result := range results {
		flat[name] = result
	}
	entry := store.SessionEntry{
		SessionID: meta.SessionID,
		RequestID: meta.RequestID,
		CreatedAt: time.Now(),
		Results:   flat,
	}
	if err := s.sessions.AppendEntry(ctx, entry); err != nil {
		s.log.Error("session history append failed",
			"session_id", meta.SessionID, "request_id", meta.RequestID, "error", err)
	}
}

// parseAnalyzeRequest accepts either a JSON body or a multipart form with an
// "audio" file part.
func parseAnalyzeRequest(r *http.Request) (*analyzeRequest, []byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return parseMultipart(r)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}
	var req analyzeRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		return nil, nil, fmt.Errorf("decode request: %w", err)
	}

	var audio []byte
	if req.AudioBase64 != "" {
		audio, err = base64.StdEncoding.DecodeString(req.AudioBase64)
		if err != nil {
			return nil, nil, fmt.Errorf("decode audio_base64: %w", err)
		}
	}
	if req.Transcript == "" && len(audio) == 0 {
		return nil, nil, fmt.Errorf("request carries neither transcript nor audio")
	}
	return &req, audio, nil
}

func parseMultipart(r *http.Request) (*analyzeRequest, []byte, error) {
	if err := r.ParseMultipartForm(maxRequestBytes); err != nil {
		return nil, nil, fmt.Errorf("parse multipart form: %w", err)
	}
	req := &analyzeRequest{
		Transcript: r.FormValue("transcript"),
		MimeType:   r.FormValue("mime_type"),
		SessionID:  r.FormValue("session_id"),
		UserID:     r.FormValue("user_id"),
	}
	if v := r.FormValue("transcript_final"); v != "" {
		final, err := strconv.ParseBool(v)
		if err != nil {
			return nil, nil, fmt.Errorf("parse transcript_final: %w", err)
		}
		req.TranscriptFinal = final
	}

	var audio []byte
	file, header, err := r.FormFile("audio")
	switch {
	case err == http.ErrMissingFile:
	case err != nil:
		return nil, nil, fmt.Errorf("read audio part: %w", err)
	default:
		defer file.Close()
		audio, err = io.ReadAll(file)
		if err != nil {
			return nil, nil, fmt.Errorf("read audio part: %w", err)
		}
		if req.MimeType == "" {
			req.MimeType = header.Header.Get("Content-Type")
		}
	}

	if req.Transcript == "" && len(audio) == 0 {
		return nil, nil, fmt.Errorf("request carries neither transcript nor audio")
	}
	return req, audio, nil
}

func (s *Server) handleGetBaseline(w http.ResponseWriter, r *http.Request) {
	if s.baselines == nil {
		writeError(w, http.StatusServiceUnavailable, analysis.ErrInternal, "baseline store not configured")
		return
	}
	userID := r.PathValue("user")
	profile, err := s.baselines.GetBaseline(r.Context(), userID)
	if err != nil {
		s.log.Error("baseline get failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, analysis.ErrInternal, "baseline lookup failed")
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, analysis.ErrInvalidInput, "no baseline for user")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handlePutBaseline(w http.ResponseWriter, r *http.Request) {
	if s.baselines == nil {
		writeError(w, http.StatusServiceUnavailable, analysis.ErrInternal, "baseline store not configured")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, analysis.ErrInvalidInput, "read body: "+err.Error())
		return
	}
	var profile analysis.BaselineProfile
	if err := sonic.Unmarshal(body, &profile); err != nil {
		writeError(w, http.StatusBadRequest, analysis.ErrInvalidInput, "decode profile: "+err.Error())
		return
	}
	profile.UserID = r.PathValue("user")
	if err := s.baselines.SaveBaseline(r.Context(), &profile); err != nil {
		s.log.Error("baseline save failed", "user_id", profile.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, analysis.ErrInternal, "baseline save failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "saved", "user_id": profile.UserID})
}

func (s *Server) handleDeleteBaseline(w http.ResponseWriter, r *http.Request) {
	if s.baselines == nil {
		writeError(w, http.StatusServiceUnavailable, analysis.ErrInternal, "baseline store not configured")
		return
	}
	userID := r.PathValue("user")
	if err := s.baselines.DeleteBaseline(r.Context(), userID); err != nil {
		s.log.Error("baseline delete failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, analysis.ErrInternal, "baseline delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":{"code":"internal_error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, code analysis.ErrorCode, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"code": string(code), "message": msg},
	})
}
