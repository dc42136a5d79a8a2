// Package middleware provides the HTTP middleware stack shared by every route.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const maxRequestIDLength = 128

// RequestID middleware adds a request ID to the context and sets it in the
// response header. A client-supplied X-Request-ID is reused so callers can
// correlate their own logs; otherwise a UUID is generated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.New().String()
			r.Header.Set(RequestIDHeader, requestID)
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
