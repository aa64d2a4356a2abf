package config

import "context"

// Package config provides configuration management for batchlens-ai.
//
// Responsibilities:
//   - Load configuration from YAML files and environment variables
//   - Validate configuration on startup
//   - Provide runtime access to all configuration
//   - Support configuration reloading for analysis tunables
//   - Manage sensitive data (API keys)
//   - Establish reasonable defaults
//
// Configuration Sources (priority order, high to low):
//   1. Environment variables (BATCHLENS_* prefix)
//   2. YAML config files (default: /etc/batchlens/config.yaml)
//   3. Built-in defaults (lowest priority)
//
// Main Configuration Sections:
//
//   1. Server
//      - port: Listen port (default 8082)
//      - allowed_origins: WebSocket origin allowlist
//
//   2. LLM Provider
//      - provider: "openai" | "anthropic" | "ollama"
//      - per-provider model / api_key / base_url maps
//
//   3. Analysis
//      - max_iterations: reasoning round budget per run
//      - per_round_fetch_limit: max artifacts fetched per round
//      - relevance_threshold: minimum recommendation score
//      - seed_artifacts: artifacts fetched before the first round
//      - artifact_root: directory holding job output files
//      - artifact_size_limit: per-artifact content cap in bytes
//
//   4. Database
//      - sqlite_path: Path to the analysis history SQLite file
//
//   5. Logging
//      - level: "debug" | "info" | "warn" | "error"
//      - format: "json" | "text"
//      - audit_log_path / app_log_path: rotated log files

// Config struct contains all configuration fields
type Config struct {
	// Server configuration
	Server struct {
		Port int
		// AllowedOrigins is a list of origins permitted to open WebSocket
		// connections. Use ["*"] to allow any origin (development only).
		AllowedOrigins []string
	}

	// LLM provider configuration
	LLM struct {
		Provider  string
		OpenAI    map[string]interface{}
		Anthropic map[string]interface{}
		Ollama    map[string]interface{}
	}

	// Analysis configuration
	Analysis struct {
		MaxIterations      int
		PerRoundFetchLimit int
		RelevanceThreshold float64
		SeedArtifacts      []string
		ArtifactRoot       string
		ArtifactSizeLimit  int
	}

	// Database configuration
	Database struct {
		SQLitePath string
	}

	// Logging configuration
	Logging struct {
		Level        string
		Format       string
		AuditLogPath string
		AppLogPath   string
	}
}

// ConfigManager defines the interface for configuration access.
type ConfigManager interface {
	// Load loads configuration from all sources.
	Load(ctx context.Context) error

	// Get returns the current configuration.
	Get(ctx context.Context) *Config

	// Validate validates configuration is correct and complete.
	Validate(ctx context.Context) error

	// Watch watches for configuration changes and reloads (if supported).
	Watch(ctx context.Context) <-chan Config

	// Reload reloads configuration from sources (selective settings).
	Reload(ctx context.Context) error
}

// NewConfigManager creates a new configuration manager.
func NewConfigManager(configPath string) (ConfigManager, error) {
	mgr := &viperConfigManager{
		configPath: configPath,
		config:     DefaultConfig(),
		watchChan:  make(chan Config, 1),
	}
	return mgr, nil
}

// NewConfigManagerWithDefaults creates a config manager with default config path.
func NewConfigManagerWithDefaults() (ConfigManager, error) {
	return NewConfigManager("/etc/batchlens/config.yaml")
}
