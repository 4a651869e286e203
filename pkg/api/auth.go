package api

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
)

// AuthConfig holds authentication credentials for the API middleware.
type AuthConfig struct {
	Users   map[string]string // username -> password
	APIKeys []string          // accepted API key tokens
}

// Enabled reports whether any credential is configured.
func (c AuthConfig) Enabled() bool {
	return len(c.Users) > 0 || len(c.APIKeys) > 0
}

// authMiddleware wraps an http.Handler with Basic Auth / Bearer / X-API-Key checks.
// Requests to /health and /metrics bypass authentication.
func authMiddleware(cfg AuthConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		if auth := r.Header.Get("Authorization"); auth != "" && checkAuthorization(auth, cfg) {
			next.ServeHTTP(w, r)
			return
		}
		if key := r.Header.Get("X-API-Key"); key != "" && validKey(key, cfg.APIKeys) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("WWW-Authenticate", `Basic realm="cfgblock API"`)
		writeJSON(w, http.StatusUnauthorized, Response{
			Success: false,
			Error:   "authentication required",
		})
	})
}

// checkAuthorization validates an Authorization header value.
func checkAuthorization(auth string, cfg AuthConfig) bool {
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return validKey(token, cfg.APIKeys)
	}

	payload, ok := strings.CutPrefix(auth, "Basic ")
	if !ok {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return false
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok {
		return false
	}
	expected, exists := cfg.Users[user]
	if !exists {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(pass), []byte(expected)) == 1
}

// validKey compares key against every configured token in constant time.
func validKey(key string, keys []string) bool {
	match := 0
	for _, k := range keys {
		match |= subtle.ConstantTimeCompare([]byte(key), []byte(k))
	}
	return match == 1
}
