// Package server exposes the bot's inbound HTTP API: the forward and refresh endpoints
// called by the backend, plus health, status and metrics. It injects correlation IDs
// into request contexts for consistent logging and can listen on a unix socket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SoulShadow8326/intrasudo25/discordbot/config"
	"github.com/SoulShadow8326/intrasudo25/discordbot/relay"
	"github.com/SoulShadow8326/intrasudo25/discordbot/telemetry"
)

// Relay is what the handlers need from the relay service.
type Relay interface {
	Forward(ctx context.Context, req relay.ForwardRequest) (string, error)
	Refresh(ctx context.Context) (relay.Report, error)
	Status() relay.Status
}

// NewMux returns the HTTP handler with all routes.
func NewMux(ctx context.Context, r Relay, cfg *config.Config) http.Handler {
	authCfg := loadAuthConfig(cfg)
	handlers := NewHandlers(ctx, r, cfg)

	mux := http.NewServeMux()

	// Metrics endpoint
	mux.Handle("GET /metrics", promhttp.Handler())

	// Health and readiness endpoints
	mux.HandleFunc("GET /healthz", handlers.HandleHealthz)
	mux.HandleFunc("GET /readyz", handlers.HandleReadyz)

	// Backend-facing endpoints
	mux.HandleFunc("POST /discord/forward", handlers.HandleForward)
	mux.HandleFunc("POST /discord/refresh", handlers.HandleRefresh)

	// Diagnostics
	mux.Handle("GET /status", adminAuth(http.HandlerFunc(handlers.HandleStatus), authCfg))

	// Wrap with correlation ID injector and tracing middleware
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reuse corr header if provided else generate
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(telemetry.ExtractHTTP(ctx, r.Header), telemetry.TracerHTTP, r.Method+" "+r.URL.Path,
			telemetry.HTTPMethodAttr(r.Method),
			telemetry.HTTPRouteAttr(r.URL.Path),
		)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("component", "http"))

		// Capture status code via custom ResponseWriter
		wrappedWriter := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		recoverPanics(mux).ServeHTTP(wrappedWriter, r.WithContext(ctx))

		telemetry.SetSpanHTTPStatus(span, wrappedWriter.statusCode)
	})
	return handler
}

// statusRecorder wraps ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	wrote      bool
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.wrote = true
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wrote = true
	return r.ResponseWriter.Write(b)
}

// Listen opens the configured listener: a unix socket when BOT_SOCKET_PATH is set
// (a leftover socket file is removed first), otherwise TCP on the listen address.
func Listen(cfg *config.Config) (net.Listener, error) {
	if cfg.SocketPath != "" {
		if err := os.Remove(cfg.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", cfg.SocketPath, err)
		}
		ln, err := net.Listen("unix", cfg.SocketPath)
		if err != nil {
			return nil, fmt.Errorf("listen on socket %s: %w", cfg.SocketPath, err)
		}
		if err := os.Chmod(cfg.SocketPath, 0o660); err != nil {
			slog.Warn("chmod socket", slog.String("path", cfg.SocketPath), slog.Any("err", err))
		}
		return ln, nil
	}
	ln, err := net.Listen("tcp", cfg.ListenAddr())
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.ListenAddr(), err)
	}
	return ln, nil
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, r Relay, cfg *config.Config) error {
	ln, err := Listen(cfg)
	if err != nil {
		return err
	}
	return Serve(ctx, ln, NewMux(ctx, r, cfg), WriteTimeout(cfg))
}

const (
	minWriteTimeout    = 30 * time.Second
	writeTimeoutMargin = 10 * time.Second
)

// WriteTimeout is the response deadline for the server: long enough for a forward or
// refresh to run into its own timeout and still answer.
func WriteTimeout(cfg *config.Config) time.Duration {
	return max(max(cfg.ForwardTimeout, cfg.RefreshTimeout)+writeTimeoutMargin, minWriteTimeout)
}

// Serve serves h on ln until ctx is canceled.
func Serve(ctx context.Context, ln net.Listener, h http.Handler, writeTimeout time.Duration) error {
	srv := &http.Server{
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Shutdown goroutine
	go func() {
		<-ctx.Done()
		// Use WithoutCancel to inherit context values but allow shutdown to complete
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	slog.Info("http server listening", slog.String("network", ln.Addr().Network()), slog.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}
