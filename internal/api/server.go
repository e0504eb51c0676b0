package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/observability"
)

// Server wires the backtest service into an HTTP mux.
type Server struct {
	service *Service
	logger  *log.Logger
}

// NewServer creates an HTTP server over a backtest service.
func NewServer(service *Service, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[http] ", log.LstdFlags)
	}
	return &Server{service: service, logger: logger}
}

// Routes returns the HTTP mux with all endpoints registered.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/backtest", s.handleBacktest)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", observability.Handler())
	return mux
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Closed request type: unknown fields are decode errors.
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var req BacktestRequest
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := s.service.RunBacktest(r.Context(), &req)
	if err != nil {
		s.logger.Printf("backtest failed: %v", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrConfigInvalid):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStrictModeViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
