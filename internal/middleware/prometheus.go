package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/crucial707/mydiary/internal/metrics"
)

// Prometheus records request duration and count, labelled by the matched chi
// route pattern so /diaries/{id} is one series. Unmatched requests share "unmatched".
func Prometheus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newRecorder(w)
		next.ServeHTTP(rec, r)

		route := routePattern(r)
		if route == "/metrics" {
			return
		}
		metrics.RecordRequest(r.Method, route, rec.status, time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
