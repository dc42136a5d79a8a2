package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/GokulKGit/quiz-API/server/middleware"

// Tracing starts a server span per request, continuing any trace carried
// in the incoming headers. The span is named after the matched route once
// routing has completed.
func Tracing(next http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			),
		)
		defer span.End()

		rw := NewResponseWriter(w)
		next.ServeHTTP(rw, r.WithContext(ctx))

		status := rw.Status()
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route := rctx.RoutePattern()
			span.SetName(r.Method + " " + route)
			span.SetAttributes(attribute.String("http.route", route))
		}
		span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.Int64("http.duration_ms", time.Since(start).Milliseconds()),
		)
		if id := GetRequestID(ctx); id != "" {
			span.SetAttributes(attribute.String("request.id", id))
		}

		switch {
		case status >= 500:
			span.SetStatus(codes.Error, "server_error")
		case status >= 400:
			span.SetStatus(codes.Error, "client_error")
		default:
			span.SetStatus(codes.Ok, "")
		}
	})
}
