// Package server exposes context building over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/korody/persona-ai-sub001/internal/logger"
	"github.com/korody/persona-ai-sub001/internal/model"
	"github.com/korody/persona-ai-sub001/internal/pipeline"
)

// ContextBuilder builds the bundle for one turn.
type ContextBuilder interface {
	Build(ctx context.Context, turn pipeline.Turn) (*model.ContextBundle, error)
}

// Pinger reports store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the context API.
type Handler struct {
	builder       ContextBuilder
	db            Pinger
	log           *logger.Logger
	healthTimeout time.Duration
}

func NewHandler(b ContextBuilder, db Pinger, log *logger.Logger) *Handler {
	return &Handler{builder: b, db: db, log: log.With("component", "http"), healthTimeout: 2 * time.Second}
}

// Router returns the chi router with middleware and routes mounted.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))

	r.Get("/health", h.Health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/context", h.BuildContext)
	})
	return r
}

type contextRequest struct {
	UserID string `json:"user_id"`
	Scope  string `json:"scope"`
	Text   string `json:"text"`
}

// BuildContext handles POST /v1/context.
func (h *Handler) BuildContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	bundle, err := h.builder.Build(r.Context(), pipeline.Turn{UserID: req.UserID, Scope: req.Scope, Text: req.Text})
	if err != nil {
		var re *pipeline.RetrievalError
		switch {
		case errors.Is(err, pipeline.ErrInvalidTurn):
			Error(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &re):
			w.Header().Set("Retry-After", "1")
			JSON(w, http.StatusServiceUnavailable, map[string]any{
				"error": "context retrieval failed, please retry",
				"stage": re.Stage,
				"retry": true,
			})
		default:
			h.log.Error("context build failed", "error", err)
			Error(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	JSON(w, http.StatusOK, bundle)
}

// Health reports whether the store answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.healthTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok", "database": "ok"}
	status, code := "healthy", http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		h.log.Error("health check failed", "error", err)
		checks["database"] = "unreachable"
		status, code = "degraded", http.StatusServiceUnavailable
	}
	JSON(w, code, map[string]any{"status": status, "checks": checks})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			h.log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"request_id", chiMiddleware.GetReqID(r.Context()),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error body.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// NewHTTPServer wraps the router with the timeouts used by serve.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
