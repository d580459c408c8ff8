package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// SyncConfig holds synchronization configuration
type SyncConfig struct {
	// ============ BASIC SETTINGS ============
	Enabled bool `json:"enabled"`

	// ============ SCHEDULING ============
	AutoSyncEnabled     bool `json:"auto_sync_enabled"`
	AutoSyncInterval    int  `json:"auto_sync_interval"` // seconds
	SyncOnStartup       bool `json:"sync_on_startup"`
	HealthCheckInterval int  `json:"health_check_interval"` // seconds

	// ============ LIMITS ============
	MaxFailedAttempts int `json:"max_failed_attempts"` // entity is FAILED above this
	BatchSize         int `json:"batch_size"`
	PullTimeout       int `json:"pull_timeout"`     // seconds, per entity type
	MetadataMaxAge    int `json:"metadata_max_age"` // seconds before a full refresh is due

	// ============ ORDERING ============
	PushOrder []string `json:"push_order"`

	// ============ MERGE POLICY ============
	PruneOnPull bool `json:"prune_on_pull"`

	// ============ ROUTES ============
	Routes []SyncRouteConfig `json:"routes"`
}

// SyncRouteConfig represents a backend route probed for connectivity
type SyncRouteConfig struct {
	URL      string `json:"url"`
	Type     string `json:"type"`     // primary, fallback
	Timeout  int    `json:"timeout"`  // seconds
	Priority int    `json:"priority"` // lower = higher priority
}

// DefaultPushOrder is the order in which queued mutations are replayed.
// A type must come after every type its records reference, otherwise the
// remote rejects the replay with a referential error.
var DefaultPushOrder = []string{
	"customers",    // referenced by billings, transactions, sessions
	"staff",        // referenced by sessions and attendance
	"stock",        // referenced by billing lines
	"billings",     // needs customers + stock
	"transactions", // needs customers + billings
	"sessions",     // needs staff + customers
	"attendance",   // needs staff + sessions
}

// LoadSyncConfig loads sync configuration from environment or file
func LoadSyncConfig() (*SyncConfig, error) {
	// Try to load from file first
	if configPath := os.Getenv("SYNC_CONFIG_PATH"); configPath != "" {
		cfg, err := loadSyncConfigFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load sync config %s: %w", configPath, err)
		}
		return cfg, nil
	}

	// Otherwise use defaults
	return getDefaultSyncConfig(), nil
}

// loadSyncConfigFromFile loads sync config from JSON file.
// Keys missing from the file keep their defaults.
func loadSyncConfigFromFile(path string) (*SyncConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := getDefaultSyncConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()

	return cfg, nil
}

// getDefaultSyncConfig returns default sync configuration
func getDefaultSyncConfig() *SyncConfig {
	cfg := &SyncConfig{
		Enabled: getBoolEnv("SYNC_ENABLED", true),

		AutoSyncEnabled:     getBoolEnv("SYNC_AUTO_ENABLED", true),
		AutoSyncInterval:    getIntEnv("SYNC_AUTO_INTERVAL", 300),
		SyncOnStartup:       getBoolEnv("SYNC_ON_STARTUP", true),
		HealthCheckInterval: getIntEnv("SYNC_HEALTH_INTERVAL", 30),

		MaxFailedAttempts: getIntEnv("SYNC_MAX_FAILED_ATTEMPTS", 5),
		BatchSize:         getIntEnv("SYNC_BATCH_SIZE", 100),
		PullTimeout:       getIntEnv("SYNC_PULL_TIMEOUT", 60),
		MetadataMaxAge:    getIntEnv("SYNC_METADATA_MAX_AGE", 3600),

		PushOrder: append([]string(nil), DefaultPushOrder...),

		PruneOnPull: getBoolEnv("SYNC_PRUNE_ON_PULL", false),

		Routes: getDefaultRoutes(),
	}
	cfg.normalize()
	return cfg
}

// normalize replaces nonsensical values with defaults
func (c *SyncConfig) normalize() {
	if c.MaxFailedAttempts <= 0 {
		c.MaxFailedAttempts = 5
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.AutoSyncInterval <= 0 {
		c.AutoSyncInterval = 300
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = 30
	}
	if c.PullTimeout <= 0 {
		c.PullTimeout = 60
	}
	if len(c.PushOrder) == 0 {
		c.PushOrder = append([]string(nil), DefaultPushOrder...)
	}
}

// getDefaultRoutes returns default health-check routes
func getDefaultRoutes() []SyncRouteConfig {
	routes := []SyncRouteConfig{}

	if url := os.Getenv("REMOTE_BASE_URL"); url != "" {
		routes = append(routes, SyncRouteConfig{
			URL:      url,
			Type:     "primary",
			Timeout:  10,
			Priority: 1,
		})
	}

	if url := os.Getenv("REMOTE_FALLBACK_URL"); url != "" {
		routes = append(routes, SyncRouteConfig{
			URL:      url,
			Type:     "fallback",
			Timeout:  15,
			Priority: 2,
		})
	}

	return routes
}

// Helper functions for environment variables

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
