package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/crucial707/mydiary/internal/logging"
)

// Recoverer turns a handler panic into a logged oops error and a 500 in the
// handlers' JSON envelope. http.ErrAbortHandler is re-raised.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}
			err := oops.
				Code("PANIC").
				With("request_id", chimw.GetReqID(r.Context())).
				With("method", r.Method).
				With("path", r.URL.Path).
				With("stack", string(debug.Stack())).
				Errorf("panic: %v", rec)
			logging.LogError(r.Context(), slog.Default(), "panic recovered", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}

