package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/openkpi/portal/internal/api/models"
)

// Recovery converts a handler panic into a 500 problem. A panic after the
// body started is only logged; the partial response stands.
// http.ErrAbortHandler is re-raised for net/http to handle.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)

			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}

				requestID := GetRequestID(r.Context())
				log.Error().
					Str("request_id", requestID).
					Str("method", r.Method).
					Str("route", routePattern(r)).
					Interface("panic", v).
					Bool("response_started", rec.written > 0).
					Bytes("stack", debug.Stack()).
					Msg("handler panicked")

				if rec.written > 0 {
					return
				}
				models.NewInternalError(requestID, "the request could not be completed").
					WithInstance(r.URL.Path).
					Write(rec)
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
