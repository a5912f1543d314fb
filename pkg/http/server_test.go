package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"PairWatch/pkg/logger"
)

func TestNewServerOptions(t *testing.T) {
	s := NewServer(logger.Nop(), nil,
		WithHost(""),
		WithPort(9090),
		WithMetricsPath(""),
	)
	if s.config.Host != "0.0.0.0" {
		t.Fatalf("empty host should keep the default, got %q", s.config.Host)
	}

	s = NewServer(logger.Nop(), nil, WithHost("127.0.0.1"), WithPort(9090))
	if s.config.Host != "127.0.0.1" || s.config.Port != 9090 {
		t.Fatalf("unexpected config %+v", s.config)
	}

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rec.Code)
	}
}
