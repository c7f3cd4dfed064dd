package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the pilotwatch client and sandbox.
type Config struct {
	API     APIConfig
	Poll    PollConfig
	Session SessionConfig
	Redis   RedisConfig
	Log     LogConfig
	Sandbox SandboxConfig
}

type APIConfig struct {
	BaseURL        string
	GatewayURL     string
	RequestTimeout time.Duration
}

type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

type SessionConfig struct {
	Backend string
	File    string
	Profile string
}

type RedisConfig struct {
	URL string
}

type LogConfig struct {
	Level string
}

type SandboxConfig struct {
	Port int
}

const (
	SessionBackendFile  = "file"
	SessionBackendRedis = "redis"
)

var validBackends = map[string]bool{
	SessionBackendFile:  true,
	SessionBackendRedis: true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any value is invalid.
func Load() (*Config, error) {
	cfg := &Config{
		API: APIConfig{
			BaseURL:        strings.TrimRight(envString("PILOT_API_BASE_URL", "http://localhost:8080/api"), "/"),
			GatewayURL:     strings.TrimRight(envString("PILOT_GATEWAY_URL", "http://localhost:8080"), "/"),
			RequestTimeout: envDuration("PILOT_REQUEST_TIMEOUT", 5*time.Minute),
		},
		Poll: PollConfig{
			Interval:    envDuration("PILOT_POLL_INTERVAL", 5*time.Second),
			MaxAttempts: envInt("PILOT_POLL_MAX_ATTEMPTS", 24),
		},
		Session: SessionConfig{
			Backend: envString("PILOT_SESSION_BACKEND", SessionBackendFile),
			File:    envString("PILOT_SESSION_FILE", defaultSessionFile()),
			Profile: envString("PILOT_SESSION_PROFILE", "default"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Log: LogConfig{
			Level: envString("PILOT_LOG_LEVEL", "info"),
		},
		Sandbox: SandboxConfig{
			Port: envInt("SANDBOX_PORT", 8080),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if err := validateHTTPURL("PILOT_API_BASE_URL", c.API.BaseURL); err != nil {
		return err
	}
	if err := validateHTTPURL("PILOT_GATEWAY_URL", c.API.GatewayURL); err != nil {
		return err
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("PILOT_REQUEST_TIMEOUT must be positive, got %s", c.API.RequestTimeout)
	}

	if c.Poll.Interval <= 0 {
		return fmt.Errorf("PILOT_POLL_INTERVAL must be positive, got %s", c.Poll.Interval)
	}
	if c.Poll.MaxAttempts < 1 {
		return fmt.Errorf("PILOT_POLL_MAX_ATTEMPTS must be at least 1, got %d", c.Poll.MaxAttempts)
	}

	if !validBackends[c.Session.Backend] {
		return fmt.Errorf("PILOT_SESSION_BACKEND must be one of file, redis; got %q", c.Session.Backend)
	}
	if c.Session.Backend == SessionBackendFile && c.Session.File == "" {
		return fmt.Errorf("PILOT_SESSION_FILE is required when PILOT_SESSION_BACKEND is file")
	}
	if c.Session.Backend == SessionBackendRedis && c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required when PILOT_SESSION_BACKEND is redis")
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return fmt.Errorf("PILOT_LOG_LEVEL: %w", err)
	}

	if c.Sandbox.Port < 1 || c.Sandbox.Port > 65535 {
		return fmt.Errorf("SANDBOX_PORT must be between 1 and 65535, got %d", c.Sandbox.Port)
	}

	return nil
}

// SlogLevel parses Level as a slog level name (debug, info, warn, error).
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

func validateHTTPURL(key, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", key)
	}
	if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
		return fmt.Errorf("%s must start with http:// or https://, got %q", key, v)
	}
	return nil
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".pilotwatch", "session.json")
	}
	return filepath.Join(home, ".pilotwatch", "session.json")
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
