package config

// DefaultConfig returns a configuration with all default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Server defaults
	cfg.Server.Port = 8082
	cfg.Server.AllowedOrigins = nil

	// LLM defaults
	cfg.LLM.Provider = "openai"
	cfg.LLM.OpenAI = map[string]interface{}{
		"model":      "gpt-4o",
		"max_tokens": 4096,
	}
	cfg.LLM.Anthropic = map[string]interface{}{
		"model":      "claude-3-5-sonnet-20241022",
		"max_tokens": 4096,
	}
	cfg.LLM.Ollama = map[string]interface{}{
		"base_url": "http://localhost:11434",
		"model":    "llama3",
	}

	// Analysis defaults
	cfg.Analysis.MaxIterations = 5
	cfg.Analysis.PerRoundFetchLimit = 3
	cfg.Analysis.RelevanceThreshold = 0.3
	cfg.Analysis.SeedArtifacts = []string{
		"Error",
		"request.script",
		"__Warnings__.xml",
		"JobStatistics.xml",
	}
	cfg.Analysis.ArtifactRoot = "data/artifacts"
	cfg.Analysis.ArtifactSizeLimit = 10000

	// Database defaults
	cfg.Database.SQLitePath = "data/batchlens.db"

	// Logging defaults
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.AuditLogPath = "logs/audit.log"
	cfg.Logging.AppLogPath = "logs/app.log"

	return cfg
}
