// Package server exposes the gateway to the desktop UI over a local HTTP
// API. It binds to localhost only; there is no remote surface.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/timesage/timesage/internal/gateway"
	"github.com/timesage/timesage/internal/history"
	"github.com/timesage/timesage/internal/signal"
)

// Options holds the server's collaborators.
type Options struct {
	Gateway *gateway.Gateway
	History *history.Store // optional; enables pattern enrichment and outcome recording
	Logger  *zap.Logger
}

// Server is the local HTTP facade over the gateway.
type Server struct {
	gw   *gateway.Gateway
	hist *history.Store
	log  *zap.Logger
}

// New creates a server from its collaborators.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{gw: opts.Gateway, hist: opts.History, log: log}
}

// Run starts the HTTP server on host:port and blocks until the context is
// cancelled. Only one instance may run per machine; a taken port fails fast.
func (s *Server) Run(ctx context.Context, host string, port int, quiet bool) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	if err := checkPortAvailable(addr); err != nil {
		return fmt.Errorf("port %d is already in use - is another instance running?", port)
	}

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(quiet),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // task calls can wait out cooldowns
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	s.log.Info("server ready", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// Handler builds the chi router with all routes and middleware mounted.
func (s *Server) Handler(quiet bool) http.Handler {
	r := chi.NewRouter()
	if !quiet {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(corsMiddleware())

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/classify", s.handleClassify)
		r.Post("/tasks", s.handleTask)
		r.Get("/history", s.handleHistory)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type analyzeRequest struct {
	Path        string          `json:"path"`
	AppName     string          `json:"appName"`
	WindowTitle string          `json:"windowTitle"`
	RequestID   string          `json:"requestId"`
	Signals     []signal.Signal `json:"signals"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	res := s.gw.AnalyzeScreenshot(r.Context(), gateway.AnalyzeRequest{
		Path:        req.Path,
		AppName:     req.AppName,
		WindowTitle: req.WindowTitle,
		RequestID:   req.RequestID,
		Signals:     req.Signals,
	})
	writeJSON(w, http.StatusOK, res)
}

type classifyRequest struct {
	Description string                   `json:"description"`
	Options     []gateway.ClassifyOption `json:"options"`
	Context     string                   `json:"context"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Description == "" || len(req.Options) == 0 {
		writeError(w, http.StatusBadRequest, "description and options are required")
		return
	}

	res := s.gw.ClassifyActivity(r.Context(), req.Description, req.Options, req.Context)
	writeJSON(w, http.StatusOK, res)
}

type taskRequest struct {
	TaskType           signal.TaskType `json:"taskType"`
	Signals            []signal.Signal `json:"signals"`
	IncludeUserContext bool            `json:"includeUserContext"`
	DurationSeconds    int64           `json:"durationSeconds"`
	StartTime          time.Time       `json:"startTime"`
	EndTime            time.Time       `json:"endTime"`
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.TaskType == "" {
		writeError(w, http.StatusBadRequest, "taskType is required")
		return
	}

	signals := s.enrichWithPatterns(r.Context(), req.Signals)

	res := s.gw.ExecuteTask(r.Context(), gateway.TaskRequest{
		TaskType:           req.TaskType,
		Signals:            signals,
		IncludeUserContext: req.IncludeUserContext,
		Duration:           time.Duration(req.DurationSeconds) * time.Second,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
	})

	s.recordOutcome(r.Context(), req.TaskType, res)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		writeError(w, http.StatusNotFound, "history store not configured")
		return
	}
	outcomes, err := s.hist.RecentOutcomes(r.Context(), 50)
	if err != nil {
		s.log.Error("list outcomes", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, outcomes)
}

// enrichWithPatterns appends a historical_patterns signal from the store
// when the caller did not already supply one.
func (s *Server) enrichWithPatterns(ctx context.Context, signals []signal.Signal) []signal.Signal {
	if s.hist == nil {
		return signals
	}
	for _, sig := range signals {
		if sig.Type == signal.TypeHistoricalPatterns {
			return signals
		}
	}
	sig, err := s.hist.PatternsSignal(ctx)
	if err != nil {
		s.log.Warn("pattern lookup failed", zap.Error(err))
		return signals
	}
	if sig == nil {
		return signals
	}
	return append(append([]signal.Signal(nil), signals...), *sig)
}

func (s *Server) recordOutcome(ctx context.Context, taskType signal.TaskType, res gateway.TaskResult) {
	if s.hist == nil || res.Summary == "" {
		return
	}
	if _, err := s.hist.RecordOutcome(ctx, history.Outcome{
		TaskType: taskType,
		Summary:  res.Summary,
		Success:  res.Success,
		Fallback: res.Fallback,
	}); err != nil {
		s.log.Warn("record outcome failed", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// corsMiddleware handles CORS for the desktop UI. This is a local app, so
// only localhost origins are allowed.
func corsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || isLocalhostOrigin(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isLocalhostOrigin reports whether origin points at this machine.
func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1" ||
		strings.HasSuffix(host, ".localhost")
}

// checkPortAvailable checks if the address is available for binding.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}
