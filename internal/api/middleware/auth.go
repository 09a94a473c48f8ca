package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/theblitlabs/parity-ml/internal/auth"
	"github.com/theblitlabs/parity-ml/pkg/logger"
)

// Auth requires a bearer token signed by authority. Websocket clients that
// cannot set headers may pass it as the token query parameter. A nil
// authority lets every request through.
func Auth(authority *auth.Authority) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if authority == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" {
				raw = r.URL.Query().Get("token")
			}

			claims, err := authority.Verify(raw)
			if err != nil {
				log := logger.WithComponent("api")
				log.Warn().Err(err).Str("path", r.URL.Path).Msg("Rejected unauthenticated request")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}
