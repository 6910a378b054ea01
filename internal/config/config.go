package config

import (
	"os"
	"strconv"

	"gomvdist/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Integration IntegrationConfig
	Server      ServerConfig
	Batch       BatchConfig
	LogLevel    string
}

// IntegrationConfig holds the defaults applied when a request leaves a limit at zero
type IntegrationConfig struct {
	MaxEvaluations    int
	AbsoluteTolerance float64
	RelativeTolerance float64
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
}

// BatchConfig bounds how many batch requests are in flight at once
type BatchConfig struct {
	Workers int
}

// Default returns the configuration used when no environment is set
func Default() *Config {
	return &Config{
		Integration: IntegrationConfig{
			MaxEvaluations:    100000,
			AbsoluteTolerance: 1e-5,
			RelativeTolerance: 0,
		},
		Server:   ServerConfig{Port: "8080"},
		Batch:    BatchConfig{Workers: 4},
		LogLevel: "INFO",
	}
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	def := Default()
	config := &Config{
		Integration: IntegrationConfig{
			MaxEvaluations:    getEnvIntOrDefault("MVDIST_MAX_EVALUATIONS", def.Integration.MaxEvaluations),
			AbsoluteTolerance: getEnvFloatOrDefault("MVDIST_ABS_TOLERANCE", def.Integration.AbsoluteTolerance),
			RelativeTolerance: getEnvFloatOrDefault("MVDIST_REL_TOLERANCE", def.Integration.RelativeTolerance),
		},
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", def.Server.Port),
		},
		Batch: BatchConfig{
			Workers: getEnvIntOrDefault("MVDIST_BATCH_WORKERS", def.Batch.Workers),
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", def.LogLevel),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func validateConfig(config *Config) error {
	if config.Integration.MaxEvaluations <= 0 || config.Integration.MaxEvaluations > maxInt32 {
		return errors.ConfigInvalid("MVDIST_MAX_EVALUATIONS must be in [1, 2147483647]")
	}
	if config.Integration.AbsoluteTolerance < 0 {
		return errors.ConfigInvalid("MVDIST_ABS_TOLERANCE must be non-negative")
	}
	if config.Integration.RelativeTolerance < 0 {
		return errors.ConfigInvalid("MVDIST_REL_TOLERANCE must be non-negative")
	}
	if config.Integration.AbsoluteTolerance == 0 && config.Integration.RelativeTolerance == 0 {
		return errors.ConfigInvalid("at least one of MVDIST_ABS_TOLERANCE and MVDIST_REL_TOLERANCE must be positive")
	}
	if config.Batch.Workers < 1 {
		return errors.ConfigInvalid("MVDIST_BATCH_WORKERS must be at least 1")
	}
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	return nil
}

const maxInt32 = 1<<31 - 1

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
