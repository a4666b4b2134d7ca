// Package config assembles the orchestrator's modular per-concern YAML
// configuration, the way internal/config/config.go composes its
// section types.
package config

// Config is the top-level configuration for one orchestrator process.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Session       SessionConfig       `yaml:"session"`
	LLM           LLMConfig           `yaml:"llm"`
	Tools         ToolsConfig         `yaml:"tools"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// DefaultConfig returns a Config with conservative defaults suitable for
// local development against the in-memory store.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: 8080,
		},
		Session: SessionConfig{
			DefaultTitle:  "New Conversation",
			MaxIterations: 10,
			Compaction: CompactionConfig{
				MaxMessages:          60,
				MaxChars:             30000,
				MaxToolResultChars:   6000,
				MaxMsgsBeforeSummary: 30,
				KeepRecentMessages:   10,
				MaxSummaryLength:     2000,
			},
		},
		LLM: LLMConfig{
			DefaultProvider: "anthropic",
			DefaultModel:    "claude-sonnet-4-20250514",
		},
		Tools: ToolsConfig{
			Sandbox: SandboxConfig{
				Roots: []string{"."},
			},
			Execution: ToolExecutionConfig{
				MaxToolRetries: 10,
			},
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
			},
		},
	}
}
