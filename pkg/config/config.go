package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from strings like "30s"
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config represents the application configuration
type Config struct {
	// Narrator configuration
	OpenAIKey     string  `yaml:"openai_key"`
	OpenAIBaseURL string  `yaml:"openai_base_url"`
	Model         string  `yaml:"model"`
	Temperature   float64 `yaml:"temperature"`

	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Narrator rate limiting and timeouts
	Narrator NarratorConfig `yaml:"narrator"`

	// Session cache janitor
	Janitor JanitorConfig `yaml:"janitor"`
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	Port              int `yaml:"port"`
	ObservabilityPort int `yaml:"observability_port"`
}

// StorageConfig selects and configures the session storage backend
type StorageConfig struct {
	// Backend is "redis" or "file"
	Backend string `yaml:"backend"`

	// Redis settings, used when Backend is "redis"
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// FileDir is the base directory for the file backend
	FileDir string `yaml:"file_dir"`
}

// NarratorConfig bounds the narration provider
type NarratorConfig struct {
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
	Timeout           Duration `yaml:"timeout"`
}

// JanitorConfig controls eviction of idle cached sessions
type JanitorConfig struct {
	// Schedule is a cron expression; empty disables the janitor
	Schedule string   `yaml:"schedule"`
	MaxIdle  Duration `yaml:"max_idle"`
}

// LoadConfig loads configuration from a YAML file.
// A missing file is not an error; defaults and environment variables
// still apply, so the service runs with no config file at all.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	// Apply defaults
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ObservabilityPort == 0 {
		cfg.Server.ObservabilityPort = 9090
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "file"
	}
	if cfg.Narrator.RequestsPerSecond == 0 {
		cfg.Narrator.RequestsPerSecond = 5
	}
	if cfg.Narrator.Burst == 0 {
		cfg.Narrator.Burst = 10
	}
	if cfg.Narrator.Timeout.Duration == 0 {
		cfg.Narrator.Timeout = Duration{60 * time.Second}
	}
	if cfg.Janitor.Schedule == "" {
		cfg.Janitor.Schedule = "@every 10m"
	}
	if cfg.Janitor.MaxIdle.Duration == 0 {
		cfg.Janitor.MaxIdle = Duration{time.Hour}
	}

	// Load secrets and overrides from environment if not in config
	if cfg.OpenAIKey == "" {
		cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.OpenAIBaseURL == "" {
		cfg.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if cfg.Storage.RedisAddr == "" {
		cfg.Storage.RedisAddr = os.Getenv("REDIS_ADDR")
	}
	if port := os.Getenv("PORT"); port != "" {
		if _, err := fmt.Sscanf(port, "%d", &cfg.Server.Port); err != nil {
			return nil, fmt.Errorf("invalid PORT value %q", port)
		}
	}

	return &cfg, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.OpenAIKey == "" {
		return fmt.Errorf("an OpenAI API key must be configured")
	}

	switch c.Storage.Backend {
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis backend")
		}
	case "file":
		// FileDir may be empty; the backend falls back to its default dir
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	return nil
}
