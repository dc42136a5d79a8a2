package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/GokulKGit/quiz-API/errors"
)

// Timeout bounds the request context. Handlers observe the deadline through
// the context; if one returns without writing after the deadline passed, a
// 504 body is written on its behalf.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			rw := NewResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			if !rw.Written() && ctx.Err() == context.DeadlineExceeded {
				errors.WriteError(rw, errors.NewTimeoutError(GetRequestID(ctx), timeout, ctx.Err()))
			}
		})
	}
}
