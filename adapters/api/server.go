// Package api exposes the distribution service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"gomvdist/app"
	"gomvdist/internal"
	"gomvdist/internal/errors"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

// Server routes HTTP requests to the distribution service. Handlers run
// concurrently; the service serializes routine access.
type Server struct {
	router  *chi.Mux
	service *app.DistributionService
	logger  *internal.Logger
}

// NewServer creates the HTTP adapter
func NewServer(service *app.DistributionService, logger *internal.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		service: service,
		logger:  logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/probability", s.handleProbability)
		r.Post("/probability/batch", s.handleProbabilityBatch)
		r.Post("/critical", s.handleCritical)
		r.Get("/gate", s.handleGateStats)
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("HTTP server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGateStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.GateStats())
}

func (s *Server) handleProbability(w http.ResponseWriter, r *http.Request) {
	var body ProbabilityBody
	if !s.decode(w, r, &body) {
		return
	}
	req, err := body.ToRequest()
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := s.service.RectangleProbability(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCritical(w http.ResponseWriter, r *http.Request) {
	var body CriticalBody
	if !s.decode(w, r, &body) {
		return
	}
	req, err := body.ToRequest()
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := s.service.CriticalValue(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleProbabilityBatch(w http.ResponseWriter, r *http.Request) {
	var body BatchBody
	if !s.decode(w, r, &body) {
		return
	}

	items := make([]BatchItem, len(body.Requests))
	reqs := make([]app.ProbabilityRequest, 0, len(body.Requests))
	positions := make([]int, 0, len(body.Requests))
	for i, b := range body.Requests {
		items[i].Index = i
		req, err := b.ToRequest()
		if err != nil {
			items[i].Error = errorBody(err)
			continue
		}
		reqs = append(reqs, req)
		positions = append(positions, i)
	}

	results, err := s.service.ProbabilityBatch(r.Context(), reqs)
	if err != nil {
		s.logger.Warn("batch interrupted: %v", err)
	}
	for k, res := range results {
		item := &items[positions[k]]
		if res.Err != nil {
			item.Error = errorBody(res.Err)
			continue
		}
		result := res.Result
		item.Result = &result
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"results": items})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, errors.Wrap(errors.WithCode(errors.CodeInvalidInput, err), "malformed request body"))
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed: %v", err)
	}
	s.writeJSON(w, status, map[string]interface{}{"error": errorBody(err)})
}

func errorBody(err error) *ErrorBody {
	body := &ErrorBody{Code: errors.GetCode(err), Message: err.Error()}
	if inform, ok := errors.StatusCode(err); ok {
		body.StatusCode = &inform
	}
	return body
}

// httpStatus maps error codes onto HTTP statuses: caller mistakes are 400,
// routine-reported domain failures 422, everything else 500.
func httpStatus(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeContractViolation, errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeInvalidDimension, errors.CodeNotPSD, errors.CodeInvalidBounds, errors.CodeUnrecognized:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode %d response: %v", status, err)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("%s %s %d %dB in %s [%s]", r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(),
			time.Since(start).Round(time.Microsecond), middleware.GetReqID(r.Context()))
	})
}
