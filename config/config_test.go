package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.RefreshInterval != 300*time.Second {
		t.Errorf("RefreshInterval = %v, want 5m", cfg.RefreshInterval)
	}
	if cfg.BotPort != 8081 {
		t.Errorf("BotPort = %d, want 8081", cfg.BotPort)
	}
	if cfg.CommandPrefix != "!" {
		t.Errorf("CommandPrefix = %q, want !", cfg.CommandPrefix)
	}
	if cfg.CorrelationCapacity <= 0 || cfg.CorrelationTTL <= 0 {
		t.Errorf("expected bounded correlation defaults, got cap=%d ttl=%v", cfg.CorrelationCapacity, cfg.CorrelationTTL)
	}
}

func TestLoadTrimsBaseURL(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://intrasudo.example/")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIBaseURL != "https://intrasudo.example" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("FORWARD_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unparsable FORWARD_TIMEOUT")
	}
}

func TestLoadRejectsNonPositiveInterval(t *testing.T) {
	t.Setenv("CHANNEL_REFRESH_INTERVAL", "0s")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero refresh interval")
	}
}

func TestValidateBotReady(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "discord-token")
	t.Setenv("DISCORD_BOT_TOKEN", "backend-token")
	cfg, _ := Load()
	if err := cfg.ValidateBotReady(); err != nil {
		t.Errorf("expected valid bot config, got %v", err)
	}

	t.Setenv("DISCORD_TOKEN", "")
	cfg, _ = Load()
	if err := cfg.ValidateBotReady(); err == nil {
		t.Errorf("expected error when DISCORD_TOKEN missing")
	}

	t.Setenv("DISCORD_TOKEN", "discord-token")
	t.Setenv("DISCORD_BOT_TOKEN", "")
	cfg, _ = Load()
	if err := cfg.ValidateBotReady(); err == nil {
		t.Errorf("expected error when DISCORD_BOT_TOKEN missing")
	}
}

func TestListenAddr(t *testing.T) {
	cfg := &Config{BotPort: 9000}
	if got := cfg.ListenAddr(); got != ":9000" {
		t.Errorf("ListenAddr() = %q, want :9000", got)
	}
	cfg.HTTPAddr = "127.0.0.1:7000"
	if got := cfg.ListenAddr(); got != "127.0.0.1:7000" {
		t.Errorf("ListenAddr() = %q, want HTTP_ADDR override", got)
	}
}

func TestClientTarget(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"url wins", Config{BotURL: "http://bot:8081/", SocketPath: "/tmp/x.sock"}, "http://bot:8081"},
		{"socket", Config{SocketPath: "/tmp/x.sock", BotPort: 8081}, "/tmp/x.sock"},
		{"tcp fallback", Config{BotPort: 8081}, "http://localhost:8081"},
		{"explicit host", Config{HTTPAddr: "10.0.0.2:9000"}, "http://10.0.0.2:9000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ClientTarget(); got != tt.want {
				t.Errorf("ClientTarget() = %q, want %q", got, tt.want)
			}
		})
	}
}
