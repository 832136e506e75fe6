package middleware

import (
	"context"
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds handler execution on the JSON API routes
const DefaultRequestTimeout = 30 * time.Second

// Timeout cancels the request context and cuts off the response after the
// given duration. Built on http.TimeoutHandler, which buffers the response
// body, so this must not wrap streaming or websocket routes.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		capped := http.TimeoutHandler(next, timeout, "Request Timeout")

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			capped.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
