package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"ledger-transfers/internal/gateway"
)

type Config struct {
	ServerPort string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	GatewayMode        gateway.Mode
	GatewayMaxAttempts int
	GatewayBackoffBase time.Duration
}

// Load reads configuration from the environment, falling back to local
// development defaults.
func Load() *Config {
	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "ledger_transfers"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		GatewayMode:        gateway.Mode(getEnv("GATEWAY_MODE", string(gateway.ModeRandom))),
		GatewayMaxAttempts: getEnvInt("GATEWAY_MAX_ATTEMPTS", gateway.DefaultMaxAttempts),
		GatewayBackoffBase: getEnvDuration("GATEWAY_BACKOFF_BASE", gateway.DefaultBackoffBase),
	}
}

func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
