// Command discordbot relays chat between the Intrasudo backend and a Discord guild.
// It:
//   - Loads configuration and initializes structured logging.
//   - Keeps one lead and one hint channel per backend level, reconciling on startup
//     and every CHANNEL_REFRESH_INTERVAL.
//   - Relays lead replies and hints from Discord to the backend, and backend messages
//     into the lead channels.
//   - Serves /discord/forward, /discord/refresh, /healthz, /readyz, /status and /metrics
//     on a unix socket or TCP address.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/SoulShadow8326/intrasudo25/discordbot/backendapi"
	"github.com/SoulShadow8326/intrasudo25/discordbot/chat"
	"github.com/SoulShadow8326/intrasudo25/discordbot/config"
	"github.com/SoulShadow8326/intrasudo25/discordbot/relay"
	"github.com/SoulShadow8326/intrasudo25/discordbot/server"
	"github.com/SoulShadow8326/intrasudo25/discordbot/telemetry"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "discordbot",
		Short:         "Relay level chat between the Intrasudo backend and Discord",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (local dev convenience only; production relies on real env)
			_ = godotenv.Load()
			setupLogging()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	cmd.AddCommand(newRefreshCommand(), newVersionCommand())
	return cmd
}

// setupLogging configures slog from LOG_LEVEL and LOG_FORMAT. Defaults: level=info, format=text.
func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		return err
	}
	if err := cfg.ValidateBotReady(); err != nil {
		slog.Error("bot not configured", slog.Any("err", err))
		return err
	}

	telemetry.Init()

	// Tracing is optional; it stays a no-op without OTEL_EXPORTER_OTLP_ENDPOINT
	shutdown, err := telemetry.InitTracing("intrasudo-discord-bot", version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		return err
	}
	defer shutdown()

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		slog.Error("discord session setup failed", slog.Any("err", err))
		return err
	}

	backend := backendapi.New(cfg.APIBaseURL, cfg.BotAuthToken, cfg.APITimeout)
	gw := chat.NewGateway(session, session.State)
	loop := relay.NewLoop(cfg.LoopQueueSize)
	svc := relay.NewService(gw, backend, loop, relay.Options{
		CommandPrefix:       cfg.CommandPrefix,
		CorrelationCapacity: cfg.CorrelationCapacity,
		CorrelationTTL:      cfg.CorrelationTTL,
	})

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startPprof()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return chat.Run(gctx, session, gw, svc, cfg.RefreshTimeout) })
	g.Go(func() error { return server.Start(gctx, svc, cfg) })
	g.Go(func() error { return relay.StartPeriodicRefresh(gctx, svc, cfg.RefreshInterval, cfg.RefreshTimeout) })

	err = g.Wait()
	slog.Info("shutting down")
	svc.Wait()
	if err != nil {
		slog.Error("bot exited with error", slog.Any("err", err))
	}
	return err
}

// startPprof enables profiling endpoints when ENABLE_PPROF=1.
func startPprof() {
	if os.Getenv("ENABLE_PPROF") != "1" {
		return
	}
	pprofAddr := os.Getenv("PPROF_ADDR")
	if pprofAddr == "" {
		pprofAddr = "localhost:6060"
	}
	go func() {
		slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
		srv := &http.Server{
			Addr:              pprofAddr,
			Handler:           nil, // default mux exposes /debug/pprof
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil {
			slog.Error("pprof server error", slog.Any("err", err))
		}
	}()
}

func newRefreshCommand() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Ask a running bot to reconcile its level channels now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return requestRefresh(cmd.Context(), cfg, timeout, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "how long to wait for the refresh to finish")
	return cmd
}

func requestRefresh(ctx context.Context, cfg *config.Config, timeout time.Duration, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client, base := server.LocalClient(cfg.ClientTarget(), timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/discord/refresh", nil)
	if err != nil {
		return err
	}
	if cfg.AdminToken != "" {
		req.Header.Set("X-Admin-Token", cfg.AdminToken)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("reach bot at %s: %w", cfg.ClientTarget(), err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refresh failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	_, err = fmt.Fprintln(out, strings.TrimSpace(string(body)))
	return err
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
