package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// requireBearer wraps next with bearer-token auth for the task API routes.
// An empty token disables auth, the default for localhost-only binds. Token
// comparison is constant time.
func requireBearer(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		supplied, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
