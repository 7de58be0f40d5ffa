package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Scripts   ScriptsConfig   `yaml:"scripts"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Breaker   BreakerConfig   `yaml:"breaker"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string   `envconfig:"PORT" default:"8000" yaml:"port"`
	Host           string   `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*" yaml:"allowed_origins"`

	// GRPCPort enables the gRPC pipe listener when set.
	GRPCPort        string        `envconfig:"GRPC_PORT" yaml:"grpc_port"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" yaml:"shutdown_timeout"`
}

// BridgeConfig holds dispatcher and lifecycle settings.
type BridgeConfig struct {
	// MaxConcurrentDispatch bounds how many inbound messages are handled at
	// once. Zero dispatches inline on the transport goroutine.
	MaxConcurrentDispatch int64         `envconfig:"BRIDGE_MAX_DISPATCH" default:"16" yaml:"max_concurrent_dispatch"`
	ConsoleHook           bool          `envconfig:"BRIDGE_CONSOLE_HOOK" default:"true" yaml:"console_hook"`
	CallTimeout           time.Duration `envconfig:"BRIDGE_CALL_TIMEOUT" default:"10s" yaml:"call_timeout"`
}

// ScriptsConfig says where the bootstrap scripts come from.
type ScriptsConfig struct {
	Dir          string        `envconfig:"BRIDGE_SCRIPT_DIR" yaml:"dir"`
	URL          string        `envconfig:"BRIDGE_SCRIPT_URL" yaml:"url"`
	FetchRetries int           `envconfig:"BRIDGE_SCRIPT_RETRIES" default:"3" yaml:"fetch_retries"`
	FetchTimeout time.Duration `envconfig:"BRIDGE_SCRIPT_TIMEOUT" default:"5s" yaml:"fetch_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig limits inbound frames per connection and new connections
// per client address.
type RateLimitConfig struct {
	MessagesPerSecond int  `envconfig:"RATE_LIMIT_MPS" default:"200" yaml:"messages_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"400" yaml:"burst"`
	ConnectsPerSecond int  `envconfig:"RATE_LIMIT_CONNECTS" default:"10" yaml:"connects_per_second"`
	ConnectBurst      int  `envconfig:"RATE_LIMIT_CONNECT_BURST" default:"20" yaml:"connect_burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// BreakerConfig guards outbound network sends.
type BreakerConfig struct {
	MaxFailures uint32        `envconfig:"BREAKER_MAX_FAILURES" default:"5" yaml:"max_failures"`
	OpenTimeout time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT" default:"30s" yaml:"open_timeout"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadFile loads the environment first and then applies the YAML file on
// top of it. Keys absent from the file keep their environment or default
// value.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Bridge: BridgeConfig{
			MaxConcurrentDispatch: 16,
			ConsoleHook:           true,
			CallTimeout:           10 * time.Second,
		},
		Scripts: ScriptsConfig{
			FetchRetries: 3,
			FetchTimeout: 5 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			MessagesPerSecond: 200,
			Burst:             400,
			ConnectsPerSecond: 10,
			ConnectBurst:      20,
			Enabled:           true,
		},
		Breaker: BreakerConfig{
			MaxFailures: 5,
			OpenTimeout: 30 * time.Second,
		},
	}
}
