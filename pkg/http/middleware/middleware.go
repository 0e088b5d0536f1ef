package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"pulseboard/pkg/errors"
	"pulseboard/pkg/httputil"
	"pulseboard/pkg/logging"
)

// TraceID ensures every request carries a trace id on its context and echoes
// it back in the response headers.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, traceID := httputil.EnsureTraceID(r)
		w.Header().Set("X-Trace-ID", traceID)
		next.ServeHTTP(w, r)
	})
}

// statusWriter captures the response status for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// RequestLogger logs one line per request.
func RequestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sw.status),
				zap.Duration("took", time.Since(start)),
				zap.String("trace_id", httputil.GetTraceID(r)),
			)
		})
	}
}

// Recoverer converts panics into JSON 500 responses.
func Recoverer(errHandler *errors.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					errHandler.HandlePanic(w, recovered, httputil.GetTraceID(r))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
