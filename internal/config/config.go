package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ServerConfig is the control-plane configuration, read from the environment.
type ServerConfig struct {
	Port         int
	ClientSecret string
	GinMode      string
	TLSCertFile  string
	TLSKeyFile   string
	TokenExpiry  time.Duration
	AgentsFile   string
	DriverDir    string
	LogLevel     string
	LogDebug     bool
	PollInterval time.Duration
	PollWorkers  int
}

// AgentConfig is the device-agent configuration, read from the environment.
type AgentConfig struct {
	ServerURL         string
	ClientToken       string
	AgentTokenFile    string
	DriverWorkDir     string
	ReconnectInterval time.Duration
	HeartbeatInterval time.Duration
	LogLevel          string
	LogDebug          bool
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadServerConfig() (ServerConfig, error) {
	return LoadServerConfigFromEnv(osEnv{})
}

func LoadServerConfigFromEnv(env Env) (ServerConfig, error) {
	cfg := ServerConfig{
		Port:         3000,
		GinMode:      "release",
		TokenExpiry:  0, // agent tokens do not expire by default
		DriverDir:    "drivers",
		PollInterval: 5 * time.Minute,
		PollWorkers:  8,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return ServerConfig{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.ClientSecret = env.Getenv("CLIENT_SECRET")
	if cfg.ClientSecret == "" {
		return ServerConfig{}, fmt.Errorf("CLIENT_SECRET is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")
	cfg.AgentsFile = env.Getenv("AGENTS_STATE_FILE")

	if raw := env.Getenv("DRIVER_DIR"); raw != "" {
		cfg.DriverDir = raw
	}

	if raw := env.Getenv("TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return ServerConfig{}, fmt.Errorf("invalid TOKEN_EXPIRY_SECONDS")
		}
		cfg.TokenExpiry = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("POLL_INTERVAL_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return ServerConfig{}, fmt.Errorf("invalid POLL_INTERVAL_SECONDS")
		}
		cfg.PollInterval = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("POLL_WORKERS"); raw != "" {
		workers, err := strconv.Atoi(raw)
		if err != nil || workers <= 0 {
			return ServerConfig{}, fmt.Errorf("invalid POLL_WORKERS")
		}
		cfg.PollWorkers = workers
	}

	cfg.LogLevel = env.Getenv("LOG_LEVEL")
	cfg.LogDebug = env.Getenv("LOG_DEBUG") == "true"

	return cfg, nil
}

func LoadAgentConfig() (AgentConfig, error) {
	return LoadAgentConfigFromEnv(osEnv{})
}

func LoadAgentConfigFromEnv(env Env) (AgentConfig, error) {
	cfg := AgentConfig{
		AgentTokenFile:    "agent.token",
		DriverWorkDir:     os.TempDir(),
		ReconnectInterval: 10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
	}

	cfg.ServerURL = env.Getenv("SERVER_URL")
	if cfg.ServerURL == "" {
		return AgentConfig{}, fmt.Errorf("SERVER_URL is required")
	}

	cfg.ClientToken = env.Getenv("CLIENT_TOKEN")
	if cfg.ClientToken == "" {
		return AgentConfig{}, fmt.Errorf("CLIENT_TOKEN is required")
	}

	if raw := env.Getenv("AGENT_TOKEN_FILE"); raw != "" {
		cfg.AgentTokenFile = raw
	}

	if raw := env.Getenv("DRIVER_WORK_DIR"); raw != "" {
		cfg.DriverWorkDir = raw
	}

	if raw := env.Getenv("RECONNECT_INTERVAL_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return AgentConfig{}, fmt.Errorf("invalid RECONNECT_INTERVAL_SECONDS")
		}
		cfg.ReconnectInterval = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("HEARTBEAT_INTERVAL_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return AgentConfig{}, fmt.Errorf("invalid HEARTBEAT_INTERVAL_SECONDS")
		}
		cfg.HeartbeatInterval = time.Duration(seconds) * time.Second
	}

	cfg.LogLevel = env.Getenv("LOG_LEVEL")
	cfg.LogDebug = env.Getenv("LOG_DEBUG") == "true"

	return cfg, nil
}
