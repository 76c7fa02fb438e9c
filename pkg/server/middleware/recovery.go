package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"mercator-hq/toolgate/pkg/telemetry/logging"
)

// RecoveryMiddleware turns a panic in a handler into a 500 response and
// logs it with the stack trace. Internal details never reach the client.
//
// Example usage:
//
//	handler = RecoveryMiddleware(handler)
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.ErrorContext(r.Context(), "panic in handler",
					"error", err,
					"request_id", logging.GetRequestID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				WriteError(w, http.StatusInternalServerError, ErrorTypeServerError,
					"An internal error occurred. Please try again later.")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
