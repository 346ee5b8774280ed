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
	Server    ServerConfig
	Registry  RegistryConfig
	Eviction  EvictionConfig
	Storage   StorageConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// RegistryConfig holds hot-set and capture configuration.
type RegistryConfig struct {
	// Capacity bounds the number of runtimes held in memory at once.
	Capacity int `envconfig:"REGISTRY_CAPACITY" default:"8"`
	// CaptureTimeout bounds the quiescence wait before a capture proceeds
	// with in-progress state.
	CaptureTimeout time.Duration `envconfig:"CAPTURE_TIMEOUT" default:"2s"`
	// SaveQueueSize bounds the async snapshot save queue.
	SaveQueueSize int `envconfig:"SAVE_QUEUE_SIZE" default:"64"`
}

// EvictionConfig holds eviction scoring configuration.
type EvictionConfig struct {
	// RecencyWindow is the linear decay window for the recency score.
	RecencyWindow time.Duration `envconfig:"EVICTION_RECENCY_WINDOW" default:"30m"`
	// WeightsFile optionally points at a YAML file overriding score weights.
	WeightsFile string `envconfig:"EVICTION_WEIGHTS_FILE" default:""`
}

// StorageConfig holds snapshot storage configuration.
type StorageConfig struct {
	Root string `envconfig:"STORAGE_ROOT" default:"./data"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
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
			Port: "8000",
			Host: "0.0.0.0",
		},
		Registry: RegistryConfig{
			Capacity:       8,
			CaptureTimeout: 2 * time.Second,
			SaveQueueSize:  64,
		},
		Eviction: EvictionConfig{
			RecencyWindow: 30 * time.Minute,
		},
		Storage: StorageConfig{
			Root: "./data",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// ScoreWeights mirrors eviction.Weights for YAML loading. The numeric
// weights were tuned repeatedly during development; keeping them in a file
// lets operators adjust without a rebuild.
type ScoreWeights struct {
	ActiveComponent     float64 `yaml:"active_component"`
	DefaultRuntime      float64 `yaml:"default_runtime"`
	ContentBase         float64 `yaml:"content_base"`
	ContentPerComponent float64 `yaml:"content_per_component"`
	RecencyMax          float64 `yaml:"recency_max"`
}

// LoadScoreWeights reads score weights from a YAML file.
func LoadScoreWeights(path string) (*ScoreWeights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights file: %w", err)
	}

	var w ScoreWeights
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse weights file %s: %w", path, err)
	}
	return &w, nil
}
