// Package server exposes the agent's local HTTP surface: connection
// status, scan control and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/delvicier/fixagent/internal/pulse"
	"github.com/delvicier/fixagent/internal/recon"
	"github.com/delvicier/fixagent/internal/services"
	"github.com/delvicier/fixagent/internal/settings"
	"github.com/delvicier/fixagent/internal/version"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Scanner is the subset of recon.Scanner the server drives.
type Scanner interface {
	TryStart(ctx context.Context, mode recon.Mode, done func(*recon.Outcome, error)) (string, error)
	Connect(ctx context.Context, raw string) (*recon.Outcome, error)
	Cancel() bool
	Active() (id string, mode recon.Mode, ok bool)
}

// Snapshotter supplies the stored connection settings.
type Snapshotter interface {
	Snapshot() settings.Snapshot
}

// StatusReporter supplies the connectivity monitor's state.
type StatusReporter interface {
	Status() pulse.Status
}

// Compile-time interface guards.
var (
	_ Scanner        = (*recon.Scanner)(nil)
	_ Snapshotter    = (*settings.Store)(nil)
	_ StatusReporter = (*pulse.Monitor)(nil)
)

// Deps are the components the server reads and drives. Monitor, History
// and Metrics may be nil.
type Deps struct {
	Scanner  Scanner
	Settings Snapshotter
	Monitor  StatusReporter
	History  services.ScanRepository
	Metrics  http.Handler
}

// Server is the agent's HTTP server.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *zap.Logger
	mux        *http.ServeMux

	// scans started over HTTP outlive their request.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New creates a new Server instance.
func New(addr string, deps Deps, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	baseCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		deps:       deps,
		logger:     logger,
		mux:        mux,
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.withRequestID(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.registerRoutes()
	return s
}

// Handler returns the root handler, request-ID middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/v1/scans", s.handleListScans)
	s.mux.HandleFunc("GET /api/v1/scans/{id}", s.handleGetScan)
	s.mux.HandleFunc("POST /api/v1/scan", s.handleStartScan)
	s.mux.HandleFunc("DELETE /api/v1/scan", s.handleCancelScan)
	s.mux.HandleFunc("PUT /api/v1/settings/base-url", s.handleSetBaseURL)
	if s.deps.Metrics != nil {
		s.mux.Handle("GET /metrics", s.deps.Metrics)
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown stops background scans and gracefully shuts down the HTTP
// server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.cancelBase()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		w.Header().Set("X-FixAgent-Version", version.Short())
		s.logger.Debug("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "fixagent",
		"version": version.Map(),
	})
}

// statusResponse is the body of GET /api/v1/status.
type statusResponse struct {
	Connection settings.Snapshot `json:"connection"`
	Configured bool              `json:"configured"`
	Monitor    *pulse.Status     `json:"monitor,omitempty"`
	Scan       *activeScan       `json:"active_scan,omitempty"`
}

type activeScan struct {
	SessionID string     `json:"session_id"`
	Mode      recon.Mode `json:"mode"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Settings.Snapshot()
	resp := statusResponse{
		Connection: snap.Redacted(),
		Configured: snap.Configured(),
	}
	if s.deps.Monitor != nil {
		st := s.deps.Monitor.Status()
		resp.Monitor = &st
	}
	if id, mode, ok := s.deps.Scanner.Active(); ok {
		resp.Scan = &activeScan{SessionID: id, Mode: mode}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		NotFound(w, "scan history is disabled", r.URL.Path)
		return
	}
	opts := services.ListOptions{SortOrder: r.URL.Query().Get("order")}
	for key, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		raw := r.URL.Query().Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			BadRequest(w, fmt.Sprintf("invalid %s %q", key, raw), r.URL.Path)
			return
		}
		*dst = n
	}

	res, err := s.deps.History.List(r.Context(), opts)
	if err != nil {
		s.logger.Error("list scans", zap.Error(err))
		InternalError(w, "failed to list scans", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		NotFound(w, "scan history is disabled", r.URL.Path)
		return
	}
	scan, err := s.deps.History.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, services.ErrNotFound) {
		NotFound(w, "scan not found", r.URL.Path)
		return
	}
	if err != nil {
		s.logger.Error("get scan", zap.Error(err))
		InternalError(w, "failed to load scan", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

type scanRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
			BadRequest(w, "invalid JSON body", r.URL.Path)
			return
		}
	}
	if req.Mode == "" {
		req.Mode = string(recon.ModeFast)
	}
	mode, err := recon.ParseMode(req.Mode)
	if err != nil || mode == recon.ModeManual {
		BadRequest(w, fmt.Sprintf("mode must be %q or %q", recon.ModeFast, recon.ModeDeep), r.URL.Path)
		return
	}
	id, err := s.deps.Scanner.TryStart(s.baseCtx, mode, func(out *recon.Outcome, err error) {
		if err != nil {
			s.logger.Warn("background scan failed", zap.String("mode", string(mode)), zap.Error(err))
			return
		}
		s.logger.Info("background scan finished",
			zap.String("session_id", out.SessionID),
			zap.String("status", string(out.Status)),
			zap.String("found", out.FoundURL),
		)
	})
	if errors.Is(err, recon.ErrScanActive) {
		Conflict(w, err.Error(), r.URL.Path)
		return
	}
	if err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"mode":       string(mode),
		"session_id": id,
		"status":     "started",
	})
}

func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Scanner.Cancel() {
		NotFound(w, "no scan is running", r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type baseURLRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleSetBaseURL(w http.ResponseWriter, r *http.Request) {
	var req baseURLRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body", r.URL.Path)
		return
	}

	out, err := s.deps.Scanner.Connect(r.Context(), req.URL)
	switch {
	case errors.Is(err, recon.ErrInvalidURL):
		BadRequest(w, err.Error(), r.URL.Path)
		return
	case errors.Is(err, recon.ErrUnreachable):
		Unreachable(w, err.Error(), r.URL.Path)
		return
	case err != nil:
		s.logger.Error("connect", zap.Error(err))
		InternalError(w, "failed to store base URL", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
