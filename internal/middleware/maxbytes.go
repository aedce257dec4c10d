package middleware

import (
	"net/http"
	"strconv"
)

// DefaultMaxBodyBytes caps JSON bodies (1 MiB). Diary creation uses
// the larger MAX_UPLOAD_BYTES limit.
const DefaultMaxBodyBytes = 1 << 20

// MaxBytes caps the request body at n bytes. A declared Content-Length over
// the cap is refused with 413 up front; otherwise the body is wrapped with
// http.MaxBytesReader and the handler sees *http.MaxBytesError on overflow.
func MaxBytes(n int64) func(http.Handler) http.Handler {
	if n <= 0 {
		n = DefaultMaxBodyBytes
	}
	limit := strconv.FormatInt(n, 10)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > n {
				w.Header().Set("X-Max-Body-Bytes", limit)
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}
