package config

import "fmt"

// Validate checks the configuration for errors and returns all problems found.
// An empty slice means the configuration is valid.
func (c *Config) Validate() []error {
	var errs []error

	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	// LLM
	switch c.LLM.Provider {
	case "openai", "anthropic", "ollama":
	case "":
		errs = append(errs, fmt.Errorf("llm.provider is required"))
	default:
		errs = append(errs, fmt.Errorf("llm.provider must be one of openai, anthropic, ollama; got %q", c.LLM.Provider))
	}

	// Analysis
	if c.Analysis.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("analysis.max_iterations must be at least 1, got %d", c.Analysis.MaxIterations))
	}
	if c.Analysis.MaxIterations > 20 {
		errs = append(errs, fmt.Errorf("analysis.max_iterations must be at most 20, got %d", c.Analysis.MaxIterations))
	}
	if c.Analysis.PerRoundFetchLimit < 1 {
		errs = append(errs, fmt.Errorf("analysis.per_round_fetch_limit must be at least 1, got %d", c.Analysis.PerRoundFetchLimit))
	}
	if c.Analysis.RelevanceThreshold < 0 || c.Analysis.RelevanceThreshold >= 1 {
		errs = append(errs, fmt.Errorf("analysis.relevance_threshold must be in [0, 1), got %v", c.Analysis.RelevanceThreshold))
	}
	if c.Analysis.ArtifactSizeLimit < 1024 {
		errs = append(errs, fmt.Errorf("analysis.artifact_size_limit must be at least 1024 bytes, got %d", c.Analysis.ArtifactSizeLimit))
	}
	if c.Analysis.ArtifactRoot == "" {
		errs = append(errs, fmt.Errorf("analysis.artifact_root is required"))
	}

	// Database
	if c.Database.SQLitePath == "" {
		errs = append(errs, fmt.Errorf("database.sqlite_path is required"))
	}

	// Logging
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format))
	}

	return errs
}
