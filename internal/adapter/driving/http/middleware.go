package httphandler

import (
	"log/slog"
	"net/http"
	"time"
)

// statusWriter wraps http.ResponseWriter to capture the response status code.
// The first write wins: a handler's deferred WriteHeader can fire during panic
// unwinding before the recovery middleware answers, and net/http warns on a
// second WriteHeader call.
type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

// WriteHeader captures the status code and delegates to the embedded writer.
// Calls after the header has gone out are dropped.
func (sw *statusWriter) WriteHeader(status int) {
	if sw.wrote {
		return
	}
	sw.wrote = true
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

// Write marks the implicit 200 header as sent before delegating.
func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wrote = true
	return sw.ResponseWriter.Write(b)
}

// loggingMiddleware logs each HTTP request with method, path, status, and duration.
func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).Round(time.Microsecond),
			)
		})
	}
}

// recoveryMiddleware recovers from panics in HTTP handlers, logs the error,
// and answers 200 so the webhook sender never retries the delivery.
func recoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw, ok := w.(*statusWriter)
			if !ok {
				sw = &statusWriter{ResponseWriter: w, status: http.StatusOK}
			}

			defer func() {
				if v := recover(); v != nil {
					logger.Error("panic recovered",
						"panic", v,
						"path", r.URL.Path,
					)
					sw.WriteHeader(http.StatusOK)
				}
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
