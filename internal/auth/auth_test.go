package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name   string
		cfg    Config
		path   string
		header string
		want   int
	}{
		{"disabled", Config{}, "/api/v1/screen", "", http.StatusOK},
		{"missing token", Config{Enabled: true, Token: "s3cret"}, "/api/v1/screen", "", http.StatusUnauthorized},
		{"wrong token", Config{Enabled: true, Token: "s3cret"}, "/api/v1/screen", "Bearer nope", http.StatusUnauthorized},
		{"no bearer prefix", Config{Enabled: true, Token: "s3cret"}, "/api/v1/screen", "s3cret", http.StatusUnauthorized},
		{"valid token", Config{Enabled: true, Token: "s3cret"}, "/api/v1/screen", "Bearer s3cret", http.StatusOK},
		{"lowercase scheme", Config{Enabled: true, Token: "s3cret"}, "/api/v1/screen", "bearer s3cret", http.StatusOK},
		{"empty token", Config{Enabled: true, Token: "s3cret"}, "/api/v1/screen", "Bearer ", http.StatusUnauthorized},
		{"basic scheme", Config{Enabled: true, Token: "s3cret"}, "/api/v1/screen", "Basic s3cret", http.StatusUnauthorized},
		{"exempt path", Config{Enabled: true, Token: "s3cret"}, "/healthz", "", http.StatusOK},
		{"exempt catalog", Config{Enabled: true, Token: "s3cret"}, "/api/v1/catalog", "", http.StatusOK},
		{"exempt prefix", Config{Enabled: true, Token: "s3cret"}, "/api/v1/cache/stats", "", http.StatusOK},
		{"stream guarded", Config{Enabled: true, Token: "s3cret"}, "/api/v1/stream/alerts", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			Middleware(tt.cfg)(ok).ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate")
			}
		})
	}
}
