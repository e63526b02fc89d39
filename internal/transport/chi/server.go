// Package chi implements the JSON HTTP surface of the RCI service.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rci/internal/domain"
	logpkg "github.com/kailas-cloud/rci/internal/logger"
	healthuc "github.com/kailas-cloud/rci/internal/usecase/health"
	searchuc "github.com/kailas-cloud/rci/internal/usecase/search"
	statusuc "github.com/kailas-cloud/rci/internal/usecase/status"
	syncuc "github.com/kailas-cloud/rci/internal/usecase/sync"
)

// MaxTopK bounds the topK a client may request.
const MaxTopK = 50

// envelope is the uniform response body: {success, data} or
// {success, error, code, details}.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the RCI use cases over HTTP.
type Server struct {
	search        *searchuc.Service
	sync          *syncuc.Service
	status        *statusuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	sync *syncuc.Service,
	status *statusuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search: search,
		sync:   sync,
		status: status,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyInput, http.StatusBadRequest),
		sentinelHandler(domain.ErrPathNotFound, http.StatusNotFound),
		sentinelHandler(domain.ErrPermission, http.StatusForbidden),
		sentinelHandler(domain.ErrQuotaExceeded, http.StatusTooManyRequests),
		sentinelHandler(domain.ErrAuthFailed, http.StatusUnauthorized),
		sentinelHandler(domain.ErrEmbedding, http.StatusServiceUnavailable),
		sentinelHandler(domain.ErrVectorStore, http.StatusInternalServerError),
		sentinelHandler(domain.ErrCancelled, http.StatusInternalServerError),
		sentinelHandler(domain.ErrSearch, http.StatusInternalServerError),
	}
	return s
}

// Routes mounts all API routes on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/rag/search", s.SearchComponents)
	r.Post("/rag/sync", s.SyncComponents)
	r.Get("/rag/status", s.IndexStatus)
	r.Post("/rag/cache/clear", s.ClearCache)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// SearchComponents handles POST /rag/search.
func (s *Server) SearchComponents(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body: "+err.Error())
		return
	}

	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "", "query is required")
		return
	}
	if req.TopK < 0 || req.TopK > MaxTopK {
		writeError(w, http.StatusBadRequest, "",
			"topK must be between 1 and 50")
		return
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		writeError(w, http.StatusBadRequest, "",
			"threshold must be between 0 and 1")
		return
	}

	resp, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, resp)
}

// SyncComponents handles POST /rag/sync.
func (s *Server) SyncComponents(w http.ResponseWriter, r *http.Request) {
	var req domain.SyncRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "", "Invalid request body: "+err.Error())
			return
		}
	}

	resp, err := s.sync.Sync(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, resp)
}

// IndexStatus handles GET /rag/status.
func (s *Server) IndexStatus(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.status.Status(r.Context()))
}

// ClearCache handles POST /rag/cache/clear.
func (s *Server) ClearCache(w http.ResponseWriter, r *http.Request) {
	s.status.ClearCache()
	writeData(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
		s.logger.Warn("health check degraded", zap.Any("checks", report.Checks))
	}

	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	// The request-scoped logger carries the request_id.
	logger := logpkg.FromContext(r.Context())
	logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		// Sentinels without a stable wire code ship without one.
		code := domain.ErrorCode(err)
		if code == "INTERNAL_ERROR" {
			code = ""
		}
		writeError(w, status, code, msg)
		return true
	}
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyInput,
		domain.ErrPathNotFound,
		domain.ErrPermission,
		domain.ErrQuotaExceeded,
		domain.ErrAuthFailed,
		domain.ErrEmbedding,
		domain.ErrVectorStore,
		domain.ErrSearch,
		domain.ErrCancelled,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{
		Success: false,
		Error:   message,
		Code:    code,
	})
}
