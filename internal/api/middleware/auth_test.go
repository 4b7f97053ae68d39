package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	})
}

func TestAPIKeyAuth(t *testing.T) {
	const apiKey = "test-api-key"

	tests := []struct {
		name    string
		target  string
		headers map[string]string
		want    int
	}{
		{"x-api-key header", "/api/v1/tiers", map[string]string{"X-API-Key": apiKey}, http.StatusOK},
		{"bearer token", "/api/v1/tiers", map[string]string{"Authorization": "Bearer " + apiKey}, http.StatusOK},
		{"key param", "/api/v1/tiers?key=" + apiKey, nil, http.StatusOK},
		{"api_key param", "/api/v1/tiers?api_key=" + apiKey, nil, http.StatusOK},
		{"header wins over query", "/api/v1/tiers?key=wrong", map[string]string{"X-API-Key": apiKey}, http.StatusOK},
		{"bearer wins over query", "/api/v1/tiers?key=wrong", map[string]string{"Authorization": "Bearer " + apiKey}, http.StatusOK},
		{"missing key", "/api/v1/tiers", nil, http.StatusUnauthorized},
		{"wrong key", "/api/v1/tiers", map[string]string{"X-API-Key": "wrong"}, http.StatusUnauthorized},
		{"short bearer", "/api/v1/tiers", map[string]string{"Authorization": "Bear"}, http.StatusUnauthorized},
		{"lowercase bearer", "/api/v1/tiers", map[string]string{"Authorization": "bearer " + apiKey}, http.StatusUnauthorized},
		{"empty bearer falls back to query", "/api/v1/tiers?key=" + apiKey, map[string]string{"Authorization": "Bearer "}, http.StatusOK},
	}

	handler := APIKeyAuth(apiKey, nil)(okHandler())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized {
				if ct := w.Header().Get("Content-Type"); ct != "application/json" {
					t.Errorf("Content-Type = %q, want application/json", ct)
				}
			}
		})
	}
}

func TestAPIKeyAuth_EmptyConfiguredKey(t *testing.T) {
	handler := APIKeyAuth("", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tiers?key=", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		headers    map[string]string
		wantKey    string
		wantSource string
	}{
		{"header", "/", map[string]string{"X-API-Key": "h"}, "h", "header"},
		{"bearer", "/", map[string]string{"Authorization": "Bearer b"}, "b", "bearer"},
		{"basic auth ignored", "/", map[string]string{"Authorization": "Basic xyz"}, "", ""},
		{"key param", "/?key=q", nil, "q", "query"},
		{"api_key param", "/?api_key=q2", nil, "q2", "query"},
		{"key before api_key", "/?api_key=second&key=first", nil, "first", "query"},
		{"none", "/", nil, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			key, source := extractAPIKey(req)
			if key != tt.wantKey || source != tt.wantSource {
				t.Errorf("extractAPIKey() = %q, %q; want %q, %q", key, source, tt.wantKey, tt.wantSource)
			}
		})
	}
}

func TestAPIKeyAuth_LogsRejection(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := APIKeyAuth("secret", logger)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tiers?key=guess", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid API key") {
		t.Errorf("body = %s", w.Body.String())
	}
	out := buf.String()
	for _, want := range []string{"request rejected", "key_source=query", "path=/api/v1/tiers"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
	if strings.Contains(out, "guess") {
		t.Error("presented key must not be logged")
	}
}

func TestCORS(t *testing.T) {
	handler := CORS(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "X-API-Key") {
		t.Errorf("Access-Control-Allow-Headers = %q", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/analyses", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if called {
		t.Error("next handler should not be called for OPTIONS request")
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("queued"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{"http request", "status=202", "size=6", "path=/api/v1/analyses"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tiers", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if !strings.Contains(w.Body.String(), "internal server error") {
		t.Errorf("body = %q", w.Body.String())
	}
}
