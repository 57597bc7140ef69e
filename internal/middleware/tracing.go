// Package middleware provides HTTP middleware for the user board API
package middleware

import (
	"net/http"

	"github.com/R3E-Network/user_board/internal/logging"
)

// TraceIDHeader carries the request trace identifier.
const TraceIDHeader = "X-Trace-ID"

// Tracing adds trace ID to all requests
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Generate or extract trace ID
		traceID := r.Header.Get(TraceIDHeader)
		if traceID == "" || len(traceID) > 128 {
			traceID = logging.NewTraceID()
		}

		w.Header().Set(TraceIDHeader, traceID)
		next.ServeHTTP(w, r.WithContext(logging.WithTraceID(r.Context(), traceID)))
	})
}
