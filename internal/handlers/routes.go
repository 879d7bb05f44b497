package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Brownie44l1/carprice-api/internal/metrics"
)

// Routes registers every endpoint and wraps the mux with CORS, logging and
// request metrics. rec may be nil.
func (h *Handler) Routes(rec *metrics.Recorder) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/api/models", h.Models)
	mux.HandleFunc("/api/years", h.Years)
	mux.HandleFunc("/api/estimate", h.Estimate)
	mux.Handle("/metrics", rec.Handler())

	return loggingMiddleware(rec, enableCORS(mux))
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(rec *metrics.Recorder, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		elapsed := time.Since(start)
		rec.ObserveRequest(r.Method, routeLabel(r.URL.Path), sw.status, elapsed)
		slog.Info("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}

// routeLabel keeps metric cardinality bounded to the known routes.
func routeLabel(path string) string {
	switch path {
	case "/health", "/api/models", "/api/years", "/api/estimate", "/metrics":
		return path
	default:
		return "other"
	}
}
