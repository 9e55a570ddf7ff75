package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// publicPaths are served without an API key.
var publicPaths = []string{"/health", "/metrics"}

// apiKeys holds the accepted bearer tokens.
type apiKeys [][]byte

func newAPIKeys(keys []string) apiKeys {
	out := make(apiKeys, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, []byte(k))
		}
	}
	return out
}

// accepts compares token against every key in constant time.
func (ks apiKeys) accepts(token string) bool {
	ok := 0
	for _, k := range ks {
		ok |= subtle.ConstantTimeCompare(k, []byte(token))
	}
	return ok == 1
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// BearerAuthMiddleware requires one of keys as a bearer token on every path except
// publicPaths. With no non-empty keys it is a pass-through.
func BearerAuthMiddleware(keys []string) func(http.Handler) http.Handler {
	accepted := newAPIKeys(keys)

	return func(next http.Handler) http.Handler {
		if len(accepted) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range publicPaths {
				if r.URL.Path == p {
					next.ServeHTTP(w, r)
					return
				}
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing authorization header")
				return
			}
			token, ok := bearerToken(header)
			if !ok {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}
			if !accepted.accepts(token) {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
