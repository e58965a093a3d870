package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok\n" {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	pass := func() error { return nil }
	fail := func() error { return errors.New("no catalog loaded") }

	tests := []struct {
		name   string
		checks []Check
		want   int
		body   string
	}{
		{"no checks", nil, http.StatusOK, "ready"},
		{"passing", []Check{pass, pass}, http.StatusOK, "ready"},
		{"failing", []Check{pass, fail}, http.StatusServiceUnavailable, "no catalog loaded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Readyz(tt.checks...)(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if w.Code != tt.want || !strings.Contains(w.Body.String(), tt.body) {
				t.Errorf("got %d %q", w.Code, w.Body.String())
			}
		})
	}
}
