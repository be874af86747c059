// internal/httpapi/middleware.go
package httpapi

import (
	"net/http"

	"github.com/campushq/ltibridge/internal/token"
)

// requireScope gates a route on a bearer token carrying every named
// scope. Anonymous and OAuth-consumer callers are rejected; scoped
// routes are for tokens from the token endpoint only.
func (s *Server) requireScope(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := s.Tokens.FromHeader(r.Context(), r.Header.Get("Authorization"), 0, scopes)
			if id.Result != token.Authorized {
				w.Header().Set("WWW-Authenticate", `Bearer realm="ltibridge"`)
				writeErr(w, http.StatusUnauthorized, "missing or insufficient bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
