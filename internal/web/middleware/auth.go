package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/coursehub/internal/config"
	"github.com/JonMunkholm/coursehub/internal/core"
)

// BearerAuth returns middleware that requires an "Authorization: Bearer"
// header matching one of the configured admin tokens. When RequireAuth is
// false every request passes through as the "anonymous" actor.
func BearerAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAuth {
				next.ServeHTTP(w, r.WithContext(core.ContextWithActor(r.Context(), "anonymous")))
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				slog.Warn("auth: missing bearer token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="coursehub"`)
				writeAuthError(w, http.StatusUnauthorized, "unauthorized: missing bearer token")
				return
			}

			if !isValidToken(token, cfg.AdminTokens) {
				slog.Warn("auth: invalid bearer token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusForbidden, "unauthorized: invalid bearer token")
				return
			}

			ctx := core.ContextWithActor(r.Context(), "token:"+fingerprint(token))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// isValidToken compares against every configured token in constant time.
func isValidToken(token string, valid []string) bool {
	match := 0
	for _, v := range valid {
		match |= subtle.ConstantTimeCompare([]byte(token), []byte(v))
	}
	return match == 1
}

// fingerprint identifies a token in logs without revealing it.
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `","message":"Authentication required","code":"AUTH001"}`))
}
