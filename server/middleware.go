// Package server middleware for authentication and panic recovery
package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/SoulShadow8326/intrasudo25/discordbot/config"
	"github.com/SoulShadow8326/intrasudo25/discordbot/telemetry"
)

// authConfig holds the optional admin token guarding diagnostic endpoints
type authConfig struct {
	adminToken string
	enabled    bool
}

func loadAuthConfig(cfg *config.Config) *authConfig {
	enabled := cfg.AdminToken != ""
	if !enabled {
		slog.Debug("ADMIN_TOKEN not set; /status is unprotected")
	}
	return &authConfig{adminToken: cfg.AdminToken, enabled: enabled}
}

// adminAuth accepts the admin token as X-Admin-Token or as a bearer token.
func adminAuth(next http.Handler, cfg *authConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cfg.enabled {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Admin-Token")
		if token == "" {
			if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
				token = v
			}
		}
		if token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(cfg.adminToken)) == 1 {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("WWW-Authenticate", `Bearer realm="discord-bot admin"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		slog.Warn("admin auth failed", slog.String("path", r.URL.Path), slog.String("remote_addr", r.RemoteAddr))
	})
}

// recoverPanics turns a handler panic into a 500 response.
func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			telemetry.LoggerWithCorr(r.Context()).Error("panic in http handler",
				slog.String("component", "http"),
				slog.String("path", r.URL.Path),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			if sr, ok := w.(*statusRecorder); ok && sr.wrote {
				return
			}
			writeFailure(w, http.StatusInternalServerError, "internal error")
		}()
		next.ServeHTTP(w, r)
	})
}
