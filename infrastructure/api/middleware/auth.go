package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// APIKeyHeader carries the key on protected requests.
const APIKeyHeader = "X-API-KEY"

// AuthConfig holds the accepted API keys. An empty set disables the check.
type AuthConfig struct {
	keys [][]byte
}

// NewAuthConfigWithKeys creates an AuthConfig, ignoring blank keys.
func NewAuthConfigWithKeys(keys []string) AuthConfig {
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			out = append(out, []byte(k))
		}
	}
	return AuthConfig{keys: out}
}

// Enabled reports whether any key is configured.
func (c AuthConfig) Enabled() bool { return len(c.keys) > 0 }

// Valid reports whether key matches a configured key.
func (c AuthConfig) Valid(key string) bool {
	ok := false
	for _, k := range c.keys {
		if subtle.ConstantTimeCompare(k, []byte(key)) == 1 {
			ok = true
		}
	}
	return ok
}

// WriteProtect requires a valid X-API-KEY on POST, PUT, PATCH and DELETE.
// Safe methods pass through, as does everything when no key is configured.
func WriteProtect(config AuthConfig) func(http.Handler) http.Handler {
	return protect(config, safeMethod)
}

// RequireAPIKey requires a valid X-API-KEY on every method but OPTIONS, so
// reads such as a full export are guarded too. CORS preflights carry no
// credentials and always pass.
func RequireAPIKey(config AuthConfig) func(http.Handler) http.Handler {
	return protect(config, func(method string) bool { return method == http.MethodOptions })
}

func protect(config AuthConfig, exempt func(method string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.Enabled() || exempt(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				WriteError(w, r, NewAuthenticationError("missing API key"), slog.Default())
				return
			}
			if !config.Valid(key) {
				WriteError(w, r, NewAuthenticationError("invalid API key"), slog.Default())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
