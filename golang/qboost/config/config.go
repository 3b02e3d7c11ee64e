// Package config reads the environment of the qboost binaries.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	SamplerURL     string        // base url of the remote QUBO sampling service
	SamplerToken   string        // sent as X-Auth-Token
	SamplerSolver  string        // solver name forwarded with every problem
	SamplerTimeout time.Duration // zero means no client timeout
	ServerPort     int           // port of sampler_server
	LogLevel       string
	LogPretty      bool
}

// Load reads configuration from environment variables, a .env file in the working directory included
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	timeout, err := getEnvAsDuration("QBOOST_SAMPLER_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		SamplerURL:     getEnv("QBOOST_SAMPLER_URL", ""),
		SamplerToken:   getEnv("QBOOST_SAMPLER_TOKEN", ""),
		SamplerSolver:  getEnv("QBOOST_SAMPLER_SOLVER", ""),
		SamplerTimeout: timeout,
		ServerPort:     getEnvAsInt("QBOOST_SERVER_PORT", 9300),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogPretty:      getEnvAsBool("LOG_PRETTY", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the ranges of the loaded values
func (c *Config) Validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("QBOOST_SERVER_PORT %d is out of range", c.ServerPort)
	}
	if c.SamplerTimeout < 0 {
		return fmt.Errorf("QBOOST_SAMPLER_TIMEOUT %s is negative", c.SamplerTimeout)
	}
	return nil
}

// RequireSampler fails when the remote sampler is not configured.
func (c *Config) RequireSampler() error {
	if c.SamplerURL == "" {
		return fmt.Errorf("QBOOST_SAMPLER_URL is required for the remote sampler")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return d, nil
}
