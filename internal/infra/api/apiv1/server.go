// File: internal/infra/api/apiv1/server.go
package apiv1

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"ai-request-orchestrator/internal/domain"
	"ai-request-orchestrator/internal/domain/model"
	"ai-request-orchestrator/internal/domain/ports/adapter"
	"ai-request-orchestrator/internal/infra/logging"
	"ai-request-orchestrator/internal/orchestrator"
)

const maxBodyBytes = 1 << 20

// Server exposes the orchestrator over HTTP:
//
//	POST /api/v1/requests              fresh submission (isInitial=true)
//	GET  /api/v1/requests/{requestID}  re-poll of an in-flight or finished id
//
// X-Request-ID carries the idempotency token (generated when absent on POST);
// X-Wait-Ms is the caller's wait budget.
type Server struct {
	dispatcher *orchestrator.Dispatcher
	proc       adapter.Processor
	retryAfter int
	log        *zerolog.Logger
}

func NewServer(dispatcher *orchestrator.Dispatcher, proc adapter.Processor, retryAfterSec int, logger *zerolog.Logger) *Server {
	compLog := logger.With().Str("component", "apiv1").Logger()
	return &Server{
		dispatcher: dispatcher,
		proc:       proc,
		retryAfter: retryAfterSec,
		log:        &compLog,
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/requests", s.handleSubmit)
	r.Get("/api/v1/requests/{requestID}", s.handlePoll)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := logging.OwnerID(ctx)
	if owner == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = ulid.Make().String()
	}
	ctx = logging.WithRequestID(ctx, requestID)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	req := orchestrator.Request{
		OwnerID:       owner,
		RequestID:     requestID,
		TraceID:       logging.TraceID(ctx),
		CorrelationID: r.Header.Get("X-Correlation-ID"),
		WaitBudget:    waitBudget(r),
		Payload:       body,
		Initial:       true,
	}
	out, err := s.dispatcher.Initiate(ctx, s.proc, req)
	s.respond(w, r.WithContext(ctx), requestID, out, err)
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := logging.OwnerID(ctx)
	if owner == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	requestID := chi.URLParam(r, "requestID")
	ctx = logging.WithRequestID(ctx, requestID)

	req := orchestrator.Request{
		OwnerID:    owner,
		RequestID:  requestID,
		TraceID:    logging.TraceID(ctx),
		WaitBudget: waitBudget(r),
		Initial:    false,
	}
	out, err := s.dispatcher.Initiate(ctx, s.proc, req)
	s.respond(w, r.WithContext(ctx), requestID, out, err)
}

// respond maps the dispatcher outcome onto the outward protocol: a final
// answer, a stored failure, or "accepted, retry later" with a poll location.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, requestID string, out *orchestrator.Outcome, err error) {
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, &model.ErrorDescriptor{Message: "unknown request id"})
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, &model.ErrorDescriptor{Message: err.Error()})
		default:
			if f, ok := domain.AsFailure(err); ok {
				writeError(w, failureStatus(f), &model.ErrorDescriptor{Message: f.Message, Code: f.Code, Details: f.Details})
				return
			}
			// Orchestration fault, not a processor-classified failure.
			logging.With(r.Context(), s.log).Error().Err(err).Msg("orchestration error")
			writeError(w, http.StatusInternalServerError, &model.ErrorDescriptor{Message: "internal error"})
		}
		return
	}

	w.Header().Set("X-Request-ID", requestID)

	if out.Pending {
		loc := "/api/v1/requests/" + requestID
		w.Header().Set("Location", loc)
		w.Header().Set("Retry-After", strconv.Itoa(s.retryAfter))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(struct {
			RequestID string `json:"requestId"`
			Status    string `json:"status"`
			Location  string `json:"location"`
		}{requestID, string(model.RequestStatusProcessing), loc})
		return
	}

	status := out.Result.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if len(out.Result.Body) > 0 {
		_, _ = w.Write(out.Result.Body)
	} else {
		_, _ = w.Write([]byte(`{}`))
	}
}

// failureStatus surfaces a stored HTTP-shaped code as-is; otherwise retryable
// failures read as a bad gateway, the rest as an internal error.
func failureStatus(f *domain.Failure) int {
	if f.Code >= 400 && f.Code < 600 {
		return f.Code
	}
	if f.Retryable {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, ed *model.ErrorDescriptor) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error *model.ErrorDescriptor `json:"error"`
	}{ed})
}

func waitBudget(r *http.Request) time.Duration {
	ms, err := strconv.Atoi(r.Header.Get("X-Wait-Ms"))
	if err != nil || ms < 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
