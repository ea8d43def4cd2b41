package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/coursehub/internal/config"
	"github.com/JonMunkholm/coursehub/internal/core"
)

func actorEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(core.ActorFromContext(r.Context())))
	})
}

func TestBearerAuth(t *testing.T) {
	cfg := &config.SecurityConfig{RequireAuth: true, AdminTokens: []string{"alpha", "beta"}}
	h := BearerAuth(cfg)(actorEcho())

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic alpha", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"invalid token", "Bearer gamma", http.StatusForbidden},
		{"first token", "Bearer alpha", http.StatusOK},
		{"second token lowercase scheme", "bearer beta", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/dbcourses", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Contains(t, rec.Body.String(), "token:")
				assert.NotContains(t, rec.Body.String(), "alpha")
			} else {
				assert.Contains(t, rec.Body.String(), "AUTH001")
			}
		})
	}
}

func TestBearerAuth_Disabled(t *testing.T) {
	h := BearerAuth(&config.SecurityConfig{RequireAuth: false})(actorEcho())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		headers map[string]string
		want    string
	}{
		{"untrusted ignores header", nil, "203.0.113.5:1234", map[string]string{"X-Real-IP": "1.2.3.4"}, "203.0.113.5"},
		{"trusted uses X-Real-IP", []string{"10.0.0.0/8"}, "10.1.2.3:80", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"trusted uses first XFF hop", []string{"10.0.0.1"}, "10.0.0.1:80", map[string]string{"X-Forwarded-For": "5.6.7.8, 10.0.0.1"}, "5.6.7.8"},
		{"trusted invalid header keeps remote", []string{"10.0.0.0/8"}, "10.0.0.9:80", map[string]string{"X-Real-IP": "nope"}, "10.0.0.9"},
		{"invalid CIDR skipped", []string{"bogus"}, "10.0.0.9:80", map[string]string{"X-Real-IP": "1.2.3.4"}, "10.0.0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotRemote, gotCtx string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotRemote = r.RemoteAddr
				gotCtx = core.ClientIPFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, gotRemote)
			assert.Equal(t, tt.want, gotCtx)
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/course/create/CS1", nil))

	out := buf.String()
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"bytes":15`)
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"path":"/api/course/create/CS1"`)
}
