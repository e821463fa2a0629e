package api

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/confluence-collector/internal/collector"
	"github.com/JakeFAU/confluence-collector/internal/metrics"
	"github.com/JakeFAU/confluence-collector/internal/sink/ndjson"
)

// Collector starts collection runs.
type Collector interface {
	Collect(ctx context.Context) *collector.Stream
}

// Server wires HTTP handlers to the collector.
type Server struct {
	router    chi.Router
	collector Collector
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(c Collector, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		collector: c,
		logger:    logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/collect", s.collect)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.collector == nil {
		s.writeError(w, http.StatusServiceUnavailable, "collector not configured")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// collect runs one collection and streams each document as a JSON line. A run
// that fails before producing anything answers 502; a failure after streaming
// began is appended as a final {"error": ...} line.
func (s *Server) collect(w http.ResponseWriter, r *http.Request) {
	stream := s.collector.Collect(r.Context())
	logger := s.logger.With(zap.String("run_id", stream.RunID()), zap.String("request_id", requestID(r.Context())))

	next, stop := iter.Pull2(stream.Documents())
	defer stop()

	doc, err, ok := next()
	if err != nil {
		logger.Error("collection failed", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if stream.RunID() != "" {
		w.Header().Set("X-Run-ID", stream.RunID())
	}
	w.Header().Set("Content-Type", ndjson.ContentType)
	w.WriteHeader(http.StatusOK)

	out := ndjson.New(w)
	written := 0
	for ; ok; doc, err, ok = next() {
		if err != nil {
			logger.Error("collection failed mid-stream", zap.Error(err), zap.Int("documents", written))
			if werr := out.WriteLine(map[string]string{"error": err.Error()}); werr != nil {
				logger.Warn("write error trailer", zap.Error(werr))
			}
			break
		}
		if werr := out.Write(r.Context(), doc); werr != nil {
			logger.Warn("client went away", zap.Error(werr), zap.Int("documents", written))
			return
		}
		written++
	}
	if cerr := out.Close(r.Context()); cerr != nil {
		logger.Warn("flush response", zap.Error(cerr))
		return
	}
	logger.Info("collection streamed", zap.Int("documents", written))
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", requestID(r.Context())),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
