package config

// SessionConfig controls conversation/turn defaults.
type SessionConfig struct {
	// DefaultTitle is used when a conversation is created without an
	// explicit title (see models.DefaultConversationTitle).
	DefaultTitle string `yaml:"default_title"`

	// MaxIterations bounds the StepLoop's model-call budget per turn.
	MaxIterations int `yaml:"max_iterations"`

	Compaction CompactionConfig `yaml:"compaction"`
}

// CompactionConfig controls the History Compactor's packing/summarization
// thresholds, mirroring agentcontext.PackOptions/SummarizationConfig.
type CompactionConfig struct {
	Enabled bool `yaml:"enabled"`

	MaxMessages        int `yaml:"max_messages"`
	MaxChars           int `yaml:"max_chars"`
	MaxToolResultChars int `yaml:"max_tool_result_chars"`

	MaxMsgsBeforeSummary int `yaml:"max_messages_before_summary"`
	KeepRecentMessages   int `yaml:"keep_recent_messages"`
	MaxSummaryLength     int `yaml:"max_summary_length"`
}
