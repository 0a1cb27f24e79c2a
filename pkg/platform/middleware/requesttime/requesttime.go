// Package requesttime pins a single "now" for the lifetime of a request so
// session timestamps and audit events written by one request agree.
package requesttime

import (
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/Ziel-Global/community-healers-sub001/pkg/requestcontext"
)

// Middleware captures the wall-clock time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return WithClock(clockwork.NewRealClock())(next)
}

// WithClock is Middleware reading from clock.
func WithClock(clock clockwork.Clock) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clock.Now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
