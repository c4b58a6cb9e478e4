package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds the application configuration.
type Config struct {
	// Server settings
	ServerPort string `yaml:"server_port" env:"SERVER_PORT" env-default:"8080"`
	LogLevel   string `yaml:"log_level" env:"LOG_LEVEL" env-default:"INFO"`

	// OpenTelemetry settings
	TelemetryEnabled bool   `yaml:"telemetry_enabled" env:"TELEMETRY_ENABLED" env-default:"true"`
	OTLPEndpoint     string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4317"`
	ServiceName      string `yaml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"taskboard"`
	Environment      string `yaml:"environment" env:"ENVIRONMENT" env-default:"development"`

	// Storage settings; DBPath ":memory:" keeps everything in process memory.
	DBPath       string `yaml:"db_path" env:"DB_PATH" env-default:"taskboard.db"`
	StorageKey   string `yaml:"storage_key" env:"STORAGE_KEY" env-default:"taskboard-todos"`
	SeedDefaults bool   `yaml:"seed_defaults" env:"SEED_DEFAULTS" env-default:"true"`

	// Simulated backend settings
	APIDelay     time.Duration `yaml:"api_delay" env:"API_DELAY" env-default:"800ms"`
	APIErrorRate float64       `yaml:"api_error_rate" env:"API_ERROR_RATE" env-default:"0.1"`
}

// Load reads the YAML file at path, falling back to the environment alone
// when path is empty or the file does not exist. Environment variables
// override file values.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		err := cleanenv.ReadConfig(path, &cfg)
		if err == nil {
			return &cfg, cfg.Validate()
		}
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return nil, fmt.Errorf("failed to read config %q: %w", path, err)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}
	return &cfg, cfg.Validate()
}

// Validate checks value ranges cleanenv cannot express.
func (c *Config) Validate() error {
	if c.APIErrorRate < 0 || c.APIErrorRate > 1 {
		return fmt.Errorf("api_error_rate must be within [0, 1], got %v", c.APIErrorRate)
	}
	if c.APIDelay < 0 {
		return fmt.Errorf("api_delay must not be negative, got %v", c.APIDelay)
	}
	if c.StorageKey == "" {
		return errors.New("storage_key must not be empty")
	}
	return nil
}

// InMemory reports whether storage should stay in process memory.
func (c *Config) InMemory() bool {
	return c.DBPath == "" || c.DBPath == ":memory:"
}
