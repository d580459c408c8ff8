package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Env            string
	OrganizationID string
	NotifyAddr     string
	Database       DatabaseConfig
	Remote         RemoteConfig
	Log            LogConfig
}

// DatabaseConfig holds local cache database configuration
type DatabaseConfig struct {
	Driver   string // sqlite, postgres
	Path     string // sqlite file
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Embedded bool // start PostgreSQL in-process
	Debug    bool
}

// RemoteConfig holds the backend the sync core replays against
type RemoteConfig struct {
	BaseURL     string
	DeviceID    string
	TokenSecret string
	TokenTTL    time.Duration
	Timeout     time.Duration
	Odoo        OdooConfig
}

// OdooConfig enables the Odoo gateway for customers when URL is set
type OdooConfig struct {
	URL      string
	Database string
	Username string
	Password string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string
	File       string
	Console    bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Env:            getEnv("APP_ENV", "development"),
		OrganizationID: os.Getenv("ORGANIZATION_ID"),
		NotifyAddr:     getEnv("NOTIFY_ADDR", ":3211"),
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "sqlite"),
			Path:     getEnv("DB_PATH", "./bizsync.db"),
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "bizsync"),
			Embedded: getBoolEnv("PG_EMBEDDED", false),
			Debug:    getBoolEnv("DB_DEBUG", false),
		},
		Remote: RemoteConfig{
			BaseURL:     os.Getenv("REMOTE_BASE_URL"),
			DeviceID:    getEnv("DEVICE_ID", hostname()),
			TokenSecret: os.Getenv("REMOTE_TOKEN_SECRET"),
			TokenTTL:    time.Duration(getIntEnv("REMOTE_TOKEN_TTL", 300)) * time.Second,
			Timeout:     time.Duration(getIntEnv("REMOTE_TIMEOUT", 15)) * time.Second,
			Odoo: OdooConfig{
				URL:      os.Getenv("ODOO_URL"),
				Database: os.Getenv("ODOO_DB"),
				Username: os.Getenv("ODOO_USER"),
				Password: os.Getenv("ODOO_PASSWORD"),
			},
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       os.Getenv("LOG_FILE"),
			Console:    getBoolEnv("LOG_CONSOLE", true),
			MaxSizeMB:  getIntEnv("LOG_MAX_SIZE_MB", 20),
			MaxBackups: getIntEnv("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getIntEnv("LOG_MAX_AGE_DAYS", 14),
		},
	}

	return cfg, nil
}

// Validate checks the settings a sync cycle cannot run without
func (c *Config) Validate() error {
	if c.OrganizationID == "" {
		return fmt.Errorf("ORGANIZATION_ID is required")
	}
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("REMOTE_BASE_URL is required")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	return nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown-device"
	}
	return name
}
