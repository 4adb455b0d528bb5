package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/fundi-app/fundi-backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID trusts an inbound X-Request-Id when present (the edge proxy sets
// one) and mints a uuid otherwise. The id is echoed on the response and
// attached to the request context for log correlation.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
