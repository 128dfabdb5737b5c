// Package chi is the ops HTTP surface: health, metrics and on-demand
// indexing of single entities.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/postdex/internal/domain"
	dombatch "github.com/kailas-cloud/postdex/internal/domain/batch"
	"github.com/kailas-cloud/postdex/internal/domain/schema"
	"github.com/kailas-cloud/postdex/internal/usecase/builder"
	healthuc "github.com/kailas-cloud/postdex/internal/usecase/health"
)

// Error codes returned in ErrorResponse.
const (
	CodeBadRequest     = "bad_request"
	CodeUnauthorized   = "unauthorized"
	CodeNotFound       = "not_found"
	CodeInvalidSchema  = "validation_failed"
	CodeNotImplemented = "not_implemented"
	CodeInternalError  = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ItemResponse is the outcome for one document.
type ItemResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// SyncResponse is the body of POST /reindex/{tenant}/{id}.
type SyncResponse struct {
	Items     []ItemResponse `json:"items"`
	Succeeded int            `json:"succeeded"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
}

// SchemaRequest is the optional body of PUT /schema.
type SchemaRequest struct {
	Lang     string `json:"lang"`
	Name     string `json:"name"`
	Shards   int    `json:"shards"`
	Replicas int    `json:"replicas"`
}

// FieldUpdateRequest is the body of PUT /reindex/{tenant}/{id}/fields/{field}.
type FieldUpdateRequest struct {
	Value any `json:"value"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the ops endpoints.
type Server struct {
	indexer       Indexer
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the ops HTTP server.
func NewServer(indexer Indexer, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{indexer: indexer, health: health, logger: logger}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrUnknownDocType, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrInvalidSchema, http.StatusBadRequest, CodeInvalidSchema),
		sentinelHandler(domain.ErrSchemaMismatch, http.StatusBadRequest, CodeInvalidSchema),
		sentinelHandler(domain.ErrNotImplemented, http.StatusNotImplemented, CodeNotImplemented),
	}
	return s
}

// Register mounts the routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())
	r.Put("/schema", s.PutSchema)
	r.Post("/reindex/{tenant}/{id}", s.Sync)
	r.Put("/reindex/{tenant}/{id}/fields/{field}", s.UpdateField)
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// PutSchema handles PUT /schema. An empty body applies the defaults.
func (s *Server) PutSchema(w http.ResponseWriter, r *http.Request) {
	var req SchemaRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}
	idx, err := s.indexer.PutSchema(r.Context(), schema.Options{
		Lang: req.Lang, Name: req.Name, Shards: req.Shards, Replicas: req.Replicas,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, idx)
}

// Sync handles POST /reindex/{tenant}/{id}: the entity and its coupled
// documents are rebuilt and written.
func (s *Server) Sync(w http.ResponseWriter, r *http.Request) {
	tenantID, entityID, ok := entityParams(w, r)
	if !ok {
		return
	}
	results, err := s.indexer.Sync(r.Context(), tenantID, entityID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	sum := dombatch.Summarize(results)
	resp := SyncResponse{
		Items:     make([]ItemResponse, 0, len(results)),
		Succeeded: sum.OK,
		Skipped:   sum.Skipped,
		Failed:    sum.Failed,
	}
	for _, res := range results {
		resp.Items = append(resp.Items, s.itemToResponse(res))
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateField handles PUT /reindex/{tenant}/{id}/fields/{field}.
func (s *Server) UpdateField(w http.ResponseWriter, r *http.Request) {
	tenantID, entityID, ok := entityParams(w, r)
	if !ok {
		return
	}
	var req FieldUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	ev := builder.Event{Field: chi.URLParam(r, "field"), Value: jsonNumber(req.Value)}

	res, err := s.indexer.Apply(r.Context(), tenantID, entityID, ev)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.itemToResponse(res))
}

func (s *Server) itemToResponse(res dombatch.Result) ItemResponse {
	item := ItemResponse{ID: res.ID(), Status: string(res.Status())}
	switch res.Status() {
	case dombatch.StatusSkipped:
		if res.Err() != nil {
			item.Error = res.Err().Error()
		}
	case dombatch.StatusError:
		s.logger.Warn("item failed", zap.String("id", res.ID()), zap.Error(res.Err()))
		item.Error = safeDomainMessage(res.Err())
	}
	return item
}

func entityParams(w http.ResponseWriter, r *http.Request) (tenantID, entityID int64, ok bool) {
	tenantID, err := strconv.ParseInt(chi.URLParam(r, "tenant"), 10, 64)
	if err != nil || tenantID <= 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "tenant must be a positive integer")
		return 0, 0, false
	}
	entityID, err = strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || entityID <= 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "id must be a positive integer")
		return 0, 0, false
	}
	return tenantID, entityID, true
}

// jsonNumber turns whole JSON numbers into int64 so counters are not
// rejected as fractional.
func jsonNumber(v any) any {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return int64(f)
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrNotIndexable,
		domain.ErrIndexingDisabled,
		domain.ErrUnknownDocType,
		domain.ErrInvalidSchema,
		domain.ErrSchemaMismatch,
		domain.ErrExtractionFailed,
		domain.ErrNotImplemented,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
