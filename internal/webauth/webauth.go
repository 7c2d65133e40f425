// Package webauth implements the web channel's bearer authentication:
// a shared static token (header or query parameter, for event-stream
// clients that cannot set headers) with an optional JWT bearer mode
// layered on top.
package webauth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Config holds the web channel's auth material. Token is the static
// shared secret; JWTSecret, when non-empty, enables the alternate JWT
// bearer mode checked first.
type Config struct {
	Token     string
	JWTSecret string
}

// Middleware builds the auth middleware described by cfg. Both the
// JWT and static-token paths are constant-time and fail closed: a
// request matching neither is rejected with 401.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := credential(r)
			if !ok {
				unauthorized(w)
				return
			}

			if cfg.JWTSecret != "" && validJWT(token, cfg.JWTSecret) {
				next.ServeHTTP(w, r)
				return
			}

			if cfg.Token != "" && constantTimeEqual(token, cfg.Token) {
				next.ServeHTTP(w, r)
				return
			}

			unauthorized(w)
		})
	}
}

// credential extracts the bearer credential from the Authorization
// header, falling back to the ?token= query parameter since
// EventSource-based SSE clients cannot set request headers.
func credential(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
			return token, true
		}
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func validJWT(token, secret string) bool {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	return err == nil && parsed.Valid
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Invalid or missing auth token"}`))
}
