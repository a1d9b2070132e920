package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/query"
	"github.com/kailas-cloud/ragdex/internal/logger"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
	"github.com/kailas-cloud/ragdex/internal/version"
)

// maxBodyBytes bounds the /query_answer request body.
const maxBodyBytes = 64 << 10

// Client-facing messages.
const (
	msgNoContext  = "No relevant context found"
	msgUnexpected = "An unexpected error occurred."
)

// Answerer runs the query pipeline.
type Answerer interface {
	Answer(ctx context.Context, q query.Query) (string, error)
}

// HealthChecker aggregates dependency checks.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// QueryRequest is the POST /query_answer body.
type QueryRequest struct {
	UserName string `json:"user_name"`
	Question string `json:"question"`
}

// QueryResponse is the POST /query_answer success body.
type QueryResponse struct {
	Response string `json:"response"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Records *int              `json:"records,omitempty"`
	Version string            `json:"version"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server is the HTTP surface of the query pipeline.
type Server struct {
	answerer       Answerer
	health         HealthChecker
	requestTimeout time.Duration
	logger         *zap.Logger
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server. requestTimeout <= 0 disables the
// whole-request deadline.
func NewServer(answerer Answerer, health HealthChecker, requestTimeout time.Duration, logger *zap.Logger) *Server {
	s := &Server{
		answerer:       answerer,
		health:         health,
		requestTimeout: requestTimeout,
		logger:         logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNoRelevantContext, http.StatusNotFound, msgNoContext),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ""),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/query_answer", s.QueryAnswer)
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())
}

// QueryAnswer handles POST /query_answer.
func (s *Server) QueryAnswer(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	q, err := query.New(req.UserName, req.Question)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	answer, err := s.answerer.Answer(ctx, q)
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}

	logger.FromContext(ctx, s.logger).Info("answer generated", zap.String("user_name", q.UserName))
	writeJSON(w, http.StatusOK, QueryResponse{Response: answer})
}

// HealthCheck handles GET /health. It is a liveness probe: the status code
// is 200 while the process serves, the body carries dependency checks.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	resp := HealthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		Version: version.String(),
	}
	if report.Records >= 0 {
		n := report.Records
		resp.Records = &n
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// sentinelHandler maps sentinel to status. An empty msg exposes the error text,
// which for these sentinels carries no internals.
func sentinelHandler(sentinel error, status int, msg string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		text := msg
		if text == "" {
			text = err.Error()
		}
		writeError(w, status, string(domain.KindOf(sentinel)), text)
		return true
	}
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.FromContext(ctx, s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("request rejected", zap.Error(err))
			return
		}
	}
	kind := domain.KindOf(err)
	log.Error("pipeline failed", zap.String("kind", string(kind)), zap.Error(err))
	writeError(w, http.StatusInternalServerError, string(kind), msgUnexpected)
}
