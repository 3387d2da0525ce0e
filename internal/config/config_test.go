package config

import (
	"testing"
	"time"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfigFromEnv(mapEnv{"CLIENT_SECRET": "s3cret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("expected release mode, got %q", cfg.GinMode)
	}
	if cfg.TokenExpiry != 0 {
		t.Fatalf("agent tokens should not expire by default")
	}
	if cfg.DriverDir != "drivers" {
		t.Fatalf("expected default driver dir, got %q", cfg.DriverDir)
	}
	if cfg.PollInterval != 5*time.Minute {
		t.Fatalf("expected default poll interval, got %v", cfg.PollInterval)
	}
	if cfg.PollWorkers != 8 {
		t.Fatalf("expected default poll workers, got %d", cfg.PollWorkers)
	}
}

func TestLoadServerConfigRequiresClientSecret(t *testing.T) {
	if _, err := LoadServerConfigFromEnv(mapEnv{}); err == nil {
		t.Fatalf("expected error without CLIENT_SECRET")
	}
}

func TestLoadServerConfigRejectsBadValues(t *testing.T) {
	cases := []mapEnv{
		{"CLIENT_SECRET": "s", "PORT": "nope"},
		{"CLIENT_SECRET": "s", "PORT": "0"},
		{"CLIENT_SECRET": "s", "PORT": "70000"},
		{"CLIENT_SECRET": "s", "TOKEN_EXPIRY_SECONDS": "-5"},
		{"CLIENT_SECRET": "s", "POLL_INTERVAL_SECONDS": "abc"},
		{"CLIENT_SECRET": "s", "POLL_WORKERS": "0"},
	}
	for _, env := range cases {
		if _, err := LoadServerConfigFromEnv(env); err == nil {
			t.Fatalf("expected error for env %v", env)
		}
	}
}

func TestLoadServerConfigOverrides(t *testing.T) {
	cfg, err := LoadServerConfigFromEnv(mapEnv{
		"CLIENT_SECRET":         "s3cret",
		"PORT":                  "8443",
		"TOKEN_EXPIRY_SECONDS":  "3600",
		"POLL_INTERVAL_SECONDS": "60",
		"POLL_WORKERS":          "4",
		"DRIVER_DIR":            "/var/lib/printfleet/drivers",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 8443 || cfg.TokenExpiry != time.Hour || cfg.PollInterval != time.Minute || cfg.PollWorkers != 4 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.DriverDir != "/var/lib/printfleet/drivers" {
		t.Fatalf("driver dir override not applied: %q", cfg.DriverDir)
	}
}

func TestLoadAgentConfigDefaults(t *testing.T) {
	cfg, err := LoadAgentConfigFromEnv(mapEnv{
		"SERVER_URL":   "http://fleet.example:3000",
		"CLIENT_TOKEN": "tok",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.AgentTokenFile != "agent.token" {
		t.Fatalf("expected default token file, got %q", cfg.AgentTokenFile)
	}
	if cfg.ReconnectInterval != 10*time.Second {
		t.Fatalf("expected 10s reconnect interval, got %v", cfg.ReconnectInterval)
	}
	if cfg.HeartbeatInterval != 30*time.Second {
		t.Fatalf("expected 30s heartbeat interval, got %v", cfg.HeartbeatInterval)
	}
}

func TestLoadAgentConfigRequiredFields(t *testing.T) {
	if _, err := LoadAgentConfigFromEnv(mapEnv{"CLIENT_TOKEN": "tok"}); err == nil {
		t.Fatalf("expected error without SERVER_URL")
	}
	if _, err := LoadAgentConfigFromEnv(mapEnv{"SERVER_URL": "http://x"}); err == nil {
		t.Fatalf("expected error without CLIENT_TOKEN")
	}
}
