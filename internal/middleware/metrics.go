package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/bookcircle/bookcircle/internal/metrics"
	"github.com/bookcircle/bookcircle/pkg/logger"
)

// responseWriter captures the status code written by a handler.
type responseWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.written {
		return
	}
	w.status = status
	w.written = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Flush lets streaming handlers flush through the wrapper.
func (w *responseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// MetricsMiddleware records request counts, durations, and in-flight
// gauge for every route.
type MetricsMiddleware struct {
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewMetricsMiddleware creates a metrics middleware.
func NewMetricsMiddleware(m *metrics.Metrics, log *logger.Logger) *MetricsMiddleware {
	if log == nil {
		log = logger.NewDefault("http")
	}
	return &MetricsMiddleware{metrics: m, log: log}
}

// Handler wraps next with request instrumentation and access logging.
func (m *MetricsMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.metrics.IncrementInFlight()
		defer m.metrics.DecrementInFlight()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		path := routePath(r)
		duration := time.Since(start)
		m.metrics.RecordHTTPRequest(r.Method, path, strconv.Itoa(rw.status), duration)

		m.log.WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.status,
			"duration_ms": duration.Milliseconds(),
		}).Info("Request completed")
	})
}

// routePath returns the mux route template so metrics do not explode
// with one label value per resource ID.
func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}
