// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required credentials (Discord and backend tokens), use ValidateBotReady.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultSocketPath is where the backend looks for the bot when neither
// BOT_SOCKET_PATH nor DISCORD_BOT_URL is set.
const DefaultSocketPath = "/tmp/discord_bot.sock"

type Config struct {
	// Discord
	DiscordToken  string `env:"DISCORD_TOKEN"`
	CommandPrefix string `env:"COMMAND_PREFIX" envDefault:"!"`

	// Backend API
	APIBaseURL   string        `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	BotAuthToken string        `env:"DISCORD_BOT_TOKEN"`
	APITimeout   time.Duration `env:"API_TIMEOUT" envDefault:"10s"`

	// Inbound HTTP surface. SocketPath wins over HTTPAddr/BotPort when set.
	SocketPath string `env:"BOT_SOCKET_PATH"`
	HTTPAddr   string `env:"HTTP_ADDR"`
	BotPort    int    `env:"DISCORD_BOT_PORT" envDefault:"8081"`
	BotURL     string `env:"DISCORD_BOT_URL"`
	AdminToken string `env:"ADMIN_TOKEN"`

	// Relay
	RefreshInterval     time.Duration `env:"CHANNEL_REFRESH_INTERVAL" envDefault:"300s"`
	ForwardTimeout      time.Duration `env:"FORWARD_TIMEOUT" envDefault:"15s"`
	RefreshTimeout      time.Duration `env:"REFRESH_TIMEOUT" envDefault:"2m"`
	CorrelationCapacity int           `env:"CORRELATION_CAPACITY" envDefault:"10000"`
	CorrelationTTL      time.Duration `env:"CORRELATION_TTL" envDefault:"24h"`
	LoopQueueSize       int           `env:"LOOP_QUEUE_SIZE" envDefault:"64"`
}

// Load reads environment variables and applies defaults. It doesn't fail if tokens are missing;
// use ValidateBotReady() before connecting to Discord.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.RefreshInterval <= 0 {
		return nil, fmt.Errorf("invalid CHANNEL_REFRESH_INTERVAL %s: must be positive", cfg.RefreshInterval)
	}
	return cfg, nil
}

// ValidateBotReady checks the credentials needed to run the bot.
func (c *Config) ValidateBotReady() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("missing DISCORD_TOKEN")
	}
	if c.BotAuthToken == "" {
		return fmt.Errorf("missing DISCORD_BOT_TOKEN")
	}
	return nil
}

// ListenAddr returns the TCP address used when no socket path is configured.
func (c *Config) ListenAddr() string {
	if c.HTTPAddr != "" {
		return c.HTTPAddr
	}
	return fmt.Sprintf(":%d", c.BotPort)
}

// ClientTarget returns where local tools (healthcheck, refresh) should reach a running bot:
// an http(s) base URL, or a unix socket path. DISCORD_BOT_URL takes precedence, then
// BOT_SOCKET_PATH, then the TCP listen address on localhost.
func (c *Config) ClientTarget() string {
	if c.BotURL != "" {
		return strings.TrimRight(c.BotURL, "/")
	}
	if c.SocketPath != "" {
		return c.SocketPath
	}
	addr := c.ListenAddr()
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}
