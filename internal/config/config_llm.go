package config

import "time"

// LLMConfig selects and configures the model provider the orchestrator
// drives per turn.
type LLMConfig struct {
	DefaultProvider string `yaml:"default_provider"`
	DefaultModel    string `yaml:"default_model"`
	System          string `yaml:"system"`

	Anthropic AnthropicProviderConfig `yaml:"anthropic"`
	OpenAI    OpenAIProviderConfig    `yaml:"openai"`
}

// AnthropicProviderConfig mirrors providers.AnthropicConfig.
type AnthropicProviderConfig struct {
	APIKey     string        `yaml:"api_key"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// OpenAIProviderConfig mirrors the minimal constructor surface of
// providers.NewOpenAIProvider.
type OpenAIProviderConfig struct {
	APIKey string `yaml:"api_key"`
}
