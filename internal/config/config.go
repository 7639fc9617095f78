package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ddx-ranking-engine/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

// NewManager creates a new configuration manager. An explicit configFile
// overrides the search paths; pass "" to search.
func NewManager(configFile string) (*Manager, error) {
	m := &Manager{v: viper.New()}
	if configFile != "" {
		m.v.SetConfigFile(configFile)
	}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from the config file, environment and defaults
func (m *Manager) loadConfig() error {
	if m.v.ConfigFileUsed() == "" {
		m.v.SetConfigName("config")
		m.v.SetConfigType("yaml")
		m.v.AddConfigPath(".")
		m.v.AddConfigPath("./config")
		m.v.AddConfigPath("/etc/ddx-ranking-engine/")
	}

	m.v.SetEnvPrefix("DDX")
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.v.AutomaticEnv()

	m.setDefaults()

	// The config file is optional
	if err := m.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := m.v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults registers every key so AutomaticEnv can override it
func (m *Manager) setDefaults() {
	v := m.v

	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "15s")
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)

	// Engine defaults
	v.SetDefault("engine.top_k", 5)
	v.SetDefault("engine.pool_size", 4)
	v.SetDefault("engine.exclusion_mode", "remove")
	v.SetDefault("engine.max_cases", 10)

	// Corpus locations; empty disables the source
	v.SetDefault("corpora.case_bank.path", "")
	v.SetDefault("corpora.label_mapping.path", "")
	v.SetDefault("corpora.label_mapping.id_table", "")
	v.SetDefault("corpora.qa_context.path", "")
	v.SetDefault("corpora.guideline.path", "")
	v.SetDefault("corpora.schema_file", "")

	// Cache defaults
	v.SetDefault("cache.max_items", 1000)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.redis_url", "")

	// Audit defaults
	v.SetDefault("audit.driver", domain.AuditDriverNone)
	v.SetDefault("audit.dsn", "")
	v.SetDefault("audit.sqlite_path", DefaultAuditDBPath())

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetEngineConfig returns ranking engine configuration
func (m *Manager) GetEngineConfig() *domain.EngineConfig {
	return &m.config.Engine
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.RateLimit < 0 {
		return fmt.Errorf("invalid rate limit: %v", config.Server.RateLimit)
	}

	if config.Engine.TopK <= 0 {
		return fmt.Errorf("invalid engine top_k: %d", config.Engine.TopK)
	}
	if config.Engine.PoolSize <= 0 {
		return fmt.Errorf("invalid engine pool_size: %d", config.Engine.PoolSize)
	}
	switch strings.ToLower(config.Engine.ExclusionMode) {
	case "remove", "retain":
	default:
		return fmt.Errorf("invalid exclusion mode: %s", config.Engine.ExclusionMode)
	}

	switch config.Audit.Driver {
	case "", domain.AuditDriverNone:
	case domain.AuditDriverSQLite:
		if config.Audit.SQLitePath == "" {
			return fmt.Errorf("audit sqlite_path is required for the sqlite driver")
		}
	case domain.AuditDriverPostgres:
		if config.Audit.DSN == "" {
			return fmt.Errorf("audit dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid audit driver: %s", config.Audit.Driver)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	switch env := strings.ToLower(m.v.GetString("environment")); env {
	case "", "dev", "development", "staging", "production":
	default:
		return fmt.Errorf("invalid environment: %s", env)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.v.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.v.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
