package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/examgen-api/internal/api/shared"
)

// TraceMiddleware assigns each request a trace ID and logs the request
// start. It runs first in the chain so every later handler and error
// response carries the same trace ID.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())

		slog.With(slog.String("trace_id", shared.GetTraceID(ctx))).Debug("request started",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
