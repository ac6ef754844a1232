// Package middleware provides HTTP middleware for the Sous Chef API
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/R3E-Network/souschef/internal/logging"
)

// maxTraceIDLen bounds client-supplied trace IDs before they reach the logs.
const maxTraceIDLen = 64

// TracingMiddleware tags each request with a trace ID and writes one access
// log line when it completes.
type TracingMiddleware struct {
	logger *logging.Logger
}

func NewTracingMiddleware(logger *logging.Logger) *TracingMiddleware {
	if logger == nil {
		logger = logging.NewDefault("http")
	}
	return &TracingMiddleware{logger: logger}
}

// incomingTraceID reuses the caller's X-Trace-ID or X-Request-ID when it is
// short and printable.
func incomingTraceID(r *http.Request) string {
	for _, header := range []string{"X-Trace-ID", "X-Request-ID"} {
		id := strings.TrimSpace(r.Header.Get(header))
		if id == "" || len(id) > maxTraceIDLen {
			continue
		}
		if strings.IndexFunc(id, func(c rune) bool { return c < '!' || c > '~' }) >= 0 {
			continue
		}
		return id
	}
	return ""
}

func (m *TracingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := incomingTraceID(r)
		if traceID == "" {
			traceID = logging.NewTraceID()
		}
		ctx := logging.WithTraceID(r.Context(), traceID)
		w.Header().Set("X-Trace-ID", traceID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r.WithContext(ctx))

		m.logger.LogRequest(ctx, r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
