package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// Where a client may present its API key, in lookup order.
const (
	apiKeyHeader = "X-API-Key"
	bearerPrefix = "Bearer "
)

var apiKeyParams = []string{"key", "api_key"}

// extractAPIKey returns the key presented by r and where it was found.
// Query parameters let plain status links poll without custom headers.
func extractAPIKey(r *http.Request) (key, source string) {
	if key = r.Header.Get(apiKeyHeader); key != "" {
		return key, "header"
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, bearerPrefix) {
		if key = strings.TrimPrefix(auth, bearerPrefix); key != "" {
			return key, "bearer"
		}
	}
	q := r.URL.Query()
	for _, name := range apiKeyParams {
		if key = q.Get(name); key != "" {
			return key, "query"
		}
	}
	return "", ""
}

// APIKeyAuth rejects requests that do not present apiKey. An empty apiKey
// rejects everything. Rejections are logged at warn when logger is non-nil.
func APIKeyAuth(apiKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	want := []byte(apiKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, source := extractAPIKey(r)

			reason := ""
			switch {
			case key == "":
				reason = "missing API key"
			case len(want) == 0 || subtle.ConstantTimeCompare([]byte(key), want) != 1:
				reason = "invalid API key"
			}
			if reason == "" {
				next.ServeHTTP(w, r)
				return
			}

			if logger != nil {
				logger.Warn("request rejected",
					"reason", reason,
					"key_source", source,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"request_id", middleware.GetReqID(r.Context()),
				)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"` + reason + `"}`))
		})
	}
}

// CORS lets browser dashboards poll job status.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+apiKeyHeader+", Authorization")
		h.Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
