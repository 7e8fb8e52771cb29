package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vigil-switch/vigil/api"
)

// BearerAuth rejects requests that do not carry the configured static bearer
// token. The server only installs this middleware when a token is configured.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			provided, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(api.Error{
					Code:    http.StatusUnauthorized,
					Message: "Missing or invalid bearer token",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
