package config

import (
	"fmt"
	"time"
)

// Config holds server configuration
type Config struct {
	// Server settings
	Port int
	Host string

	// Suite settings
	SuiteDirectory string
	SchemaPath     string
	WatchSuites    bool

	// Collector settings
	CollectorType   string // "prometheus" or "synthetic"
	PrometheusURL   string
	SyntheticFixDir string

	// Storage settings
	DBPath string // empty disables audit storage

	// Operational settings
	GracefulShutdownTimeout time.Duration
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.SuiteDirectory == "" {
		return fmt.Errorf("suite directory is required")
	}

	if c.CollectorType != "prometheus" && c.CollectorType != "synthetic" {
		return fmt.Errorf("collector type must be 'prometheus' or 'synthetic'")
	}

	if c.CollectorType == "prometheus" && c.PrometheusURL == "" {
		return fmt.Errorf("Prometheus URL required when collector type is 'prometheus'")
	}

	return nil
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Port:                    8080,
		Host:                    "0.0.0.0",
		SchemaPath:              "schemas/suite_v1.json",
		CollectorType:           "synthetic",
		GracefulShutdownTimeout: 30 * time.Second,
	}
}
