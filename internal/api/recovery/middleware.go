// Package recovery turns handler panics into 500 responses.
package recovery

import (
	"net/http"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/chrislearn/mofa-studio/internal/api/respond"
)

var panicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "companion_http_panics_total",
	Help: "Handler panics recovered, by route method.",
}, []string{"method"})

// Middleware recovers a panicking handler, logs the stack and answers with a JSON 500.
// The panic value is never echoed to the caller.
func Middleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				panicsTotal.WithLabelValues(r.Method).Inc()
				log.Error().
					Interface("panic", rec).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("stack", string(debug.Stack())).
					Msg("handler panic")
				respond.WriteInternalError(w, "Internal Server Error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
