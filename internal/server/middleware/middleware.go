// Package middleware provides HTTP middleware for logging and panic recovery.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	ferrors "git.home.luguber.info/inful/gardener/internal/foundation/errors"
	"git.home.luguber.info/inful/gardener/internal/logfields"
	"git.home.luguber.info/inful/gardener/internal/metrics"
)

// Chain returns a middleware wrapper that applies logging and panic recovery around a handler.
func Chain(logger *slog.Logger, adapter *ferrors.HTTPErrorAdapter, rec metrics.Recorder) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if adapter == nil {
		adapter = ferrors.NewHTTPErrorAdapter(logger)
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return func(next http.Handler) http.Handler {
		return loggingMiddleware(logger, rec, panicRecoveryMiddleware(logger, adapter, next))
	}
}

// loggingMiddleware logs method, path, status, duration and remote addr.
func loggingMiddleware(logger *slog.Logger, rec metrics.Recorder, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		rec.IncHTTPRequest(wrapped.statusCode)
		logger.Debug("HTTP request",
			logfields.Method(r.Method),
			logfields.Path(r.URL.Path),
			logfields.Status(wrapped.statusCode),
			logfields.Duration(time.Since(start)),
			logfields.RemoteAddr(r.RemoteAddr))
	})
}

// panicRecoveryMiddleware recovers from panics and writes a structured error response.
func panicRecoveryMiddleware(logger *slog.Logger, adapter *ferrors.HTTPErrorAdapter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logger.Error("HTTP handler panic",
					slog.Any("panic", v),
					logfields.Path(r.URL.Path),
					logfields.Method(r.Method),
					logfields.RemoteAddr(r.RemoteAddr))

				panicErr := ferrors.NewError(ferrors.CategoryInternal, "internal server error").
					WithContext("path", r.URL.Path).
					WithContext("method", r.Method).
					Build()
				adapter.WriteErrorResponse(w, r, panicErr)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter captures status codes for logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
