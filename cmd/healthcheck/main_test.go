package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
		want int
	}{
		{name: "healthy", body: `{"status":"ok","time":"2026-09-01T00:00:00Z"}`, code: http.StatusOK, want: 0},
		{name: "unhealthy status code", body: `{"status":"ok"}`, code: http.StatusServiceUnavailable, want: 1},
		{name: "foreign payload", body: `<html>proxy error</html>`, code: http.StatusOK, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/health", r.URL.Path)
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			t.Setenv("CLEARSYNC_LISTEN_ADDR", strings.TrimPrefix(server.URL, "http://"))
			assert.Equal(t, tt.want, check())
		})
	}
}

func TestNormalizeAddr(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "", want: "127.0.0.1:8140"},
		{raw: "not-an-addr", want: "127.0.0.1:8140"},
		{raw: "0.0.0.0:9000", want: "127.0.0.1:9000"},
		{raw: ":9000", want: "127.0.0.1:9000"},
		{raw: "10.1.2.3:8140", want: "10.1.2.3:8140"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeAddr(tt.raw), "raw %q", tt.raw)
	}
}
