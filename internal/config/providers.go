package config

import "time"

// ProviderConfig configures one AI provider adapter.
// Zero values for Temperature/MaxTokens fall back to the adapter defaults.
type ProviderConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Timeout     string  `yaml:"timeout"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// ProvidersConfig holds every provider the flows can use.
type ProvidersConfig struct {
	OpenAI     ProviderConfig `yaml:"openai"`
	Claude     ProviderConfig `yaml:"claude"`
	Cohere     ProviderConfig `yaml:"cohere"`
	Gemini     ProviderConfig `yaml:"gemini"`
	Perplexity ProviderConfig `yaml:"perplexity"`
	DeepL      ProviderConfig `yaml:"deepl"`
}

// DefaultProvidersConfig returns the per-provider defaults.
func DefaultProvidersConfig() ProvidersConfig {
	return ProvidersConfig{
		OpenAI: ProviderConfig{
			BaseURL:     "https://api.openai.com/v1/",
			Model:       "gpt-4o",
			Timeout:     "120s",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Claude: ProviderConfig{
			BaseURL:     "https://api.anthropic.com/",
			Model:       "claude-opus-4-20250514",
			Timeout:     "600s",
			Temperature: 0.6,
			MaxTokens:   8192,
		},
		Cohere: ProviderConfig{
			BaseURL:     "https://api.cohere.ai",
			Model:       "command-a-03-2025",
			Timeout:     "300s",
			Temperature: 0.7,
			MaxTokens:   16000,
		},
		Gemini: ProviderConfig{
			Model:       "gemini-2.5-pro",
			Timeout:     "600s",
			Temperature: 0.6,
			MaxTokens:   8192,
		},
		Perplexity: ProviderConfig{
			BaseURL: "https://api.perplexity.ai/",
			Model:   "sonar-reasoning-pro",
			Timeout: "300s",
		},
		DeepL: ProviderConfig{
			BaseURL: "https://api-free.deepl.com",
			Timeout: "30s",
		},
	}
}

// GetTimeout parses Timeout, returning fallback when it is empty or invalid.
func (p ProviderConfig) GetTimeout(fallback time.Duration) time.Duration {
	if p.Timeout == "" {
		return fallback
	}
	d, err := time.ParseDuration(p.Timeout)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
