// pkg/config/config.go
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Database connections
	Snowflake *SnowflakeConfig
	Postgres  *PostgresConfig // nil when no results sink is configured

	// Contract settings
	ContractPath string
	Tables       []string // optional subset of contract tables to validate

	// Validation settings
	BatchSize      int
	SampleLimit    int
	RetryAttempts  int
	RetryDelay     time.Duration
	WorkerPoolSize int

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		// Default values
		ContractPath:   getEnv("CONTRACT_FILE", "configs/contracts.yaml"),
		Tables:         getEnvAsStringSlice("VALIDATE_TABLES", nil),
		BatchSize:      getEnvAsInt("BATCH_SIZE", 5000),
		SampleLimit:    getEnvAsInt("SAMPLE_LIMIT", 10),
		RetryAttempts:  getEnvAsInt("RETRY_ATTEMPTS", 3),
		RetryDelay:     time.Duration(getEnvAsInt("RETRY_DELAY_MS", 1000)) * time.Millisecond,
		WorkerPoolSize: getEnvAsInt("WORKER_POOL_SIZE", 0), // 0 means use runtime.NumCPU()
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
	}

	// Load database configurations
	snowConfig, err := LoadSnowflakeConfig()
	if err != nil {
		return nil, errors.New("failed to load Snowflake configuration: " + err.Error())
	}
	cfg.Snowflake = snowConfig

	// The PostgreSQL results sink is optional. Reports always go to the
	// log; they are additionally persisted when a database is configured.
	if os.Getenv("POSTGRES_DB") != "" {
		pgConfig, err := LoadPostgresConfig()
		if err != nil {
			return nil, errors.New("failed to load PostgreSQL configuration: " + err.Error())
		}
		cfg.Postgres = pgConfig
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if c.Snowflake == nil {
		return errors.New("snowflake configuration is required")
	}

	if c.ContractPath == "" {
		return errors.New("contract file path is required")
	}

	if c.BatchSize <= 0 {
		return errors.New("batch size must be positive")
	}

	if c.SampleLimit < 0 {
		return errors.New("sample limit cannot be negative")
	}

	if c.RetryAttempts < 0 {
		return errors.New("retry attempts cannot be negative")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
