package middleware

import (
	"net/http"
	"time"
)

// timingWriter stamps X-Response-Time just before the status line goes out.
type timingWriter struct {
	http.ResponseWriter
	start       time.Time
	wroteHeader bool
}

func (tw *timingWriter) WriteHeader(code int) {
	if !tw.wroteHeader {
		tw.wroteHeader = true
		tw.Header().Set("X-Response-Time", time.Since(tw.start).String())
	}
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timingWriter) Write(b []byte) (int, error) {
	if !tw.wroteHeader {
		tw.WriteHeader(http.StatusOK)
	}
	return tw.ResponseWriter.Write(b)
}

func (tw *timingWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}

// RequestTimer measures request processing time
func RequestTimer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tw := &timingWriter{ResponseWriter: w, start: time.Now()}
		next.ServeHTTP(tw, r)
		if !tw.wroteHeader {
			w.Header().Set("X-Response-Time", time.Since(tw.start).String())
		}
	})
}

// CORS allows any origin. Preflight requests are answered directly.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Response-Time")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
