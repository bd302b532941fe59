// Package api implements the Marcus HTTP API: sessions, chat (plain
// request/response and websocket), reports, and the research log.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nugget/marcus/internal/advisor"
	"github.com/nugget/marcus/internal/buildinfo"
	"github.com/nugget/marcus/internal/report"
	"github.com/nugget/marcus/internal/research"
	"github.com/nugget/marcus/internal/session"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Pinger checks that the primary model is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ResearchLog lists recent research invocations.
type ResearchLog interface {
	Recent(ctx context.Context, limit int) ([]research.Record, error)
}

// Server is the HTTP API server.
type Server struct {
	address     string
	port        int
	sessions    *session.Manager
	reports     *report.Store
	health      Pinger
	researchLog ResearchLog
	upgrader    websocket.Upgrader
	logger      *slog.Logger
	server      *http.Server
}

// NewServer creates a new API server. reports may be nil.
func NewServer(address string, port int, sessions *session.Manager, reports *report.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address:  address,
		port:     port,
		sessions: sessions,
		reports:  reports,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		logger:   logger,
	}
}

// SetHealthCheck configures the primary model probe behind /health.
func (s *Server) SetHealthCheck(p Pinger) {
	s.health = p
}

// SetResearchLog configures the research log for /v1/research.
func (s *Server) SetResearchLog(l ResearchLog) {
	s.researchLog = l
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/sessions", s.handleSessionCreate)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleSessionDelete)
	mux.HandleFunc("POST /v1/sessions/{id}/messages", s.handleMessage)
	mux.HandleFunc("GET /v1/sessions/{id}/history", s.handleHistory)
	mux.HandleFunc("POST /v1/sessions/{id}/report", s.handleReportGenerate)
	mux.HandleFunc("GET /v1/sessions/{id}/report", s.handleSessionReport)
	mux.HandleFunc("GET /v1/sessions/{id}/ws", s.handleWebsocket)

	mux.HandleFunc("GET /v1/reports", s.handleReportList)
	mux.HandleFunc("GET /v1/reports/{name}", s.handleReportGet)
	mux.HandleFunc("GET /v1/research", s.handleResearchLog)

	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// Turns may include research and reports take minutes.
		WriteTimeout: 10 * time.Minute,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "Marcus",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			writeJSON(w, map[string]string{"status": "unhealthy", "error": err.Error()}, s.logger)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

// SessionResponse describes a session.
type SessionResponse struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Messages     int       `json:"messages"`
	LatestReport string    `json:"latest_report,omitempty"`
}

func sessionResponse(h *session.Host) SessionResponse {
	resp := SessionResponse{
		ID:        h.ID(),
		CreatedAt: h.Created(),
		Messages:  len(h.History()),
	}
	if r := h.LatestReport(); r != nil {
		resp.LatestReport = r.Name
	}
	return resp
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	h, err := s.sessions.Create()
	if err != nil {
		s.logger.Error("session create failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, sessionResponse(h), s.logger)
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(r.PathValue("id")) {
		s.errorResponse(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// lookupSession resolves the {id} path value, writing a 404 when unknown.
func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Host, bool) {
	h, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		s.errorResponse(w, http.StatusNotFound, "session not found")
	}
	return h, ok
}

// MessageRequest is a chat message from the user.
type MessageRequest struct {
	Message string `json:"message"`
}

// MessageResponse carries the advisor reply.
type MessageResponse struct {
	Reply    string `json:"reply"`
	Messages int    `json:"messages"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.Send(r.Context(), req.Message)
	if errors.Is(err, session.ErrEmptyMessage) {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, MessageResponse{Reply: reply, Messages: len(h.History())}, s.logger)
}

// HistoryResponse is a session's stored history.
type HistoryResponse struct {
	ID       string            `json:"id"`
	Messages []advisor.Message `json:"messages"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, HistoryResponse{ID: h.ID(), Messages: h.History()}, s.logger)
}

func (s *Server) handleReportGenerate(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	rep, err := h.GenerateReport(r.Context())
	switch {
	case errors.Is(err, session.ErrReportFailed):
		s.errorResponse(w, http.StatusBadGateway, err.Error())
		return
	case err != nil:
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, rep, s.logger)
}

func (s *Server) handleSessionReport(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	rep := h.LatestReport()
	if rep == nil {
		s.errorResponse(w, http.StatusNotFound, "no report yet")
		return
	}
	s.writeReport(w, r, rep)
}

func (s *Server) handleReportList(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "reports not configured")
		return
	}
	list, err := s.reports.List()
	if err != nil {
		s.logger.Error("report list failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	if list == nil {
		list = []*report.Report{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"reports": list}, s.logger)
}

func (s *Server) handleReportGet(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "reports not configured")
		return
	}
	rep, err := s.reports.Read(r.PathValue("name"))
	if errors.Is(err, report.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeReport(w, r, rep)
}

// writeReport writes rep as markdown, HTML (?format=html), or JSON
// (?format=json).
func (s *Server) writeReport(w http.ResponseWriter, r *http.Request, rep *report.Report) {
	switch r.URL.Query().Get("format") {
	case "html":
		page, err := report.RenderHTML(rep)
		if err != nil {
			s.errorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	case "json":
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, rep, s.logger)
	case "", "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(rep.Markdown()))
	default:
		s.errorResponse(w, http.StatusBadRequest, "format must be markdown, html, or json")
	}
}

func (s *Server) handleResearchLog(w http.ResponseWriter, r *http.Request) {
	if s.researchLog == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "research log not configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.errorResponse(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	recs, err := s.researchLog.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("research log query failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to read research log")
		return
	}
	if recs == nil {
		recs = []research.Record{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"invocations": recs}, s.logger)
}
