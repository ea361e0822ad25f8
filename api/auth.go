package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// requireSecret guards the scheduler endpoints with a bearer token.
// Fails closed: with no secret configured every request is refused,
// so a missing env var can never leave the triggers open.
func (s *Server) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if s.secret == "" || !ok ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.secret)) != 1 {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
