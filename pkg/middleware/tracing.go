package middleware

import (
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/tracing"
)

// Tracing opens a root span per request, named after the method and path
// and keyed by the request ID. Finished span trees are written to log when
// it is non-nil. Must run inside RequestID.
func Tracing(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.StartSpan(r.Context(), r.Method+" "+normalizePath(r.URL.Path), logger.RequestID(r.Context()))
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))
			span.SetAttr("status", sw.status)
			span.End()
			if log != nil {
				span.Log(log)
			}
		})
	}
}
