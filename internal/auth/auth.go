// Package auth guards the API with a static bearer token.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/star/orbitscreen/internal/httputil"
	"github.com/star/orbitscreen/internal/metrics"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// Probes, the scrape endpoint and read-only screening summaries stay public.
var (
	publicPaths = map[string]bool{
		"/healthz":              true,
		"/readyz":               true,
		"/metrics":              true,
		"/api/v1/catalog":       true,
		"/api/v1/screen/latest": true,
	}
	publicPrefixes = []string{"/api/v1/cache/"}
)

func public(path string) bool {
	if publicPaths[path] {
		return true
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// bearerToken returns the credential from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Middleware rejects requests to non-public paths that do not carry the
// configured token. It is a pass-through when auth is disabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	want := []byte(cfg.Token)
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := bearerToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(token), want) != 1 {
				metrics.IncAuthFailures()
				w.Header().Set("WWW-Authenticate", `Bearer realm="orbitscreen"`)
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
