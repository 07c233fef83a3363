package provider

import (
	"time"

	"ukiyo/internal/config"
)

// SettingsFromConfig converts a provider config section into call settings.
func SettingsFromConfig(pc config.ProviderConfig, fallbackTimeout time.Duration) Settings {
	return Settings{
		Model:       pc.Model,
		Temperature: pc.Temperature,
		MaxTokens:   pc.MaxTokens,
		Timeout:     pc.GetTimeout(fallbackTimeout),
	}
}

// DefaultSettings returns the built-in call defaults for a provider.
func DefaultSettings(name Name) Settings {
	d := config.DefaultProvidersConfig()
	switch name {
	case OpenAI:
		return SettingsFromConfig(d.OpenAI, 120*time.Second)
	case Claude:
		return SettingsFromConfig(d.Claude, 600*time.Second)
	case Cohere:
		return SettingsFromConfig(d.Cohere, 300*time.Second)
	case Gemini:
		return SettingsFromConfig(d.Gemini, 600*time.Second)
	case Perplexity:
		return SettingsFromConfig(d.Perplexity, 300*time.Second)
	case DeepL:
		return SettingsFromConfig(d.DeepL, 30*time.Second)
	}
	return Settings{Timeout: 120 * time.Second}
}
