package middleware

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/tracing"
)

// Tracing opens a root span per request, keyed by the request ID, and logs
// the finished span tree at debug level. Place it after RequestID.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracing.StartSpan(r.Context(), r.Method+" "+r.URL.Path, GetRequestID(r))
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))
		span.SetAttr("status", sw.status)
		span.End()
		span.Log(ctx, logger.FromContext(ctx))
	})
}
