package profiled

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/GoSim-25-26J-441/serving-profiler/internal/generate"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/logger"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/utils"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes int64 = 1 << 20

const maxListLimit = 1000

type HTTPServer struct {
	router chi.Router
	store  *SessionStore
}

// NewHTTPServer routes the session API; metrics may be nil
func NewHTTPServer(store *SessionStore, metrics *Metrics) *HTTPServer {
	s := &HTTPServer{
		router: chi.NewRouter(),
		store:  store,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.Middleware)

	s.router.Get("/healthz", s.handleHealthz)
	if metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	s.router.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Get("/", s.handleListSessions)
		r.Get("/{sessionID}", s.handleGetSession)
		r.Delete("/{sessionID}", s.handleDeleteSession)
		r.Post("/{sessionID}/next", s.handleNext)
		r.Post("/{sessionID}/measurements", s.handleReport)
		r.Get("/{sessionID}/results", s.handleResults)
	})

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"sessions":  s.store.Len(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleCreateSession handles POST /v1/sessions. The body is either
// {"profile_yaml": "..."} or, with a YAML content type, the profile itself.
func (s *HTTPServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var req CreateSessionRequest
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		req.ProfileYAML = string(body)
	} else if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.ProfileYAML) == "" {
		s.writeError(w, http.StatusBadRequest, "profile_yaml is required")
		return
	}

	info, err := s.store.CreateFromYAML(req.ProfileYAML)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, SessionResponse{Session: info})
}

// handleListSessions handles GET /v1/sessions
func (s *HTTPServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = min(parsed, maxListLimit)
		}
	}
	s.writeJSON(w, http.StatusOK, ListSessionsResponse{Sessions: s.store.List(limit)})
}

// sessionID extracts and checks the {sessionID} path parameter
func (s *HTTPServer) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "sessionID")
	if !utils.IsSessionID(id) {
		s.writeError(w, http.StatusBadRequest, "malformed session id")
		return "", false
	}
	return id, true
}

// handleGetSession handles GET /v1/sessions/{id}
func (s *HTTPServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	info, err := s.store.Get(id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SessionResponse{Session: info})
}

// handleDeleteSession handles DELETE /v1/sessions/{id}
func (s *HTTPServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleNext handles POST /v1/sessions/{id}/next
func (s *HTTPServer) handleNext(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	p, more, err := s.store.Next(id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NextConfigResponse{Done: !more, Proposal: p})
}

// handleReport handles POST /v1/sessions/{id}/measurements
func (s *HTTPServer) handleReport(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	var req ReportMeasurementRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	summary, err := s.store.Report(id, req.Measurements)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ReportMeasurementResponse{Summary: summary})
}

// handleResults handles GET /v1/sessions/{id}/results?model=&n=
func (s *HTTPServer) handleResults(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	n := 0
	if nStr := r.URL.Query().Get("n"); nStr != "" {
		parsed, err := strconv.Atoi(nStr)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}
	top, err := s.store.Top(id, r.URL.Query().Get("model"), n)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ResultsResponse{SessionID: id, Results: top})
}

// httpStatus maps store and search errors to HTTP statuses
func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSessionIDMissing),
		errors.Is(err, ErrInvalidProfile),
		errors.Is(err, ErrInvalidMeasurement):
		return http.StatusBadRequest
	case errors.Is(err, generate.ErrProtocolViolation):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) writeStoreError(w http.ResponseWriter, err error) {
	s.writeError(w, httpStatus(err), err.Error())
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}
