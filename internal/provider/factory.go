package provider

import (
	"context"
	"fmt"
	"time"

	"ukiyo/internal/config"
	"ukiyo/internal/logging"
	"ukiyo/internal/usage"
)

// Set bundles every adapter the flows and the HTTP glue use.
type Set struct {
	OpenAI     *Client
	Claude     *Client
	Cohere     *Client
	Gemini     *Client
	Search     *PerplexitySearcher
	Translator *DeepLTranslator
}

// NewSet builds adapters from config. Providers without an API key still get
// an adapter; their calls fail with "<provider> client not initialized.".
func NewSet(ctx context.Context, cfg *config.Config, tracker *usage.Tracker) (*Set, error) {
	p := cfg.Providers
	persona := cfg.Persona

	openaiCfg := DefaultOpenAIConfig(p.OpenAI.APIKey)
	if p.OpenAI.BaseURL != "" {
		openaiCfg.BaseURL = p.OpenAI.BaseURL
	}

	claudeCfg := DefaultAnthropicConfig(p.Claude.APIKey)
	if p.Claude.BaseURL != "" {
		claudeCfg.BaseURL = p.Claude.BaseURL
	}

	cohereSettings := SettingsFromConfig(p.Cohere, 300*time.Second)
	cohereCfg := DefaultCohereConfig(p.Cohere.APIKey)
	if p.Cohere.BaseURL != "" {
		cohereCfg.BaseURL = p.Cohere.BaseURL
	}
	cohereCfg.Timeout = cohereSettings.Timeout

	gemini, err := NewGeminiBackend(ctx, GeminiConfig{APIKey: p.Gemini.APIKey, BaseURL: p.Gemini.BaseURL})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	pplxCfg := DefaultPerplexityConfig(p.Perplexity.APIKey)
	if p.Perplexity.BaseURL != "" {
		pplxCfg.BaseURL = p.Perplexity.BaseURL
	}

	deeplSettings := SettingsFromConfig(p.DeepL, 30*time.Second)

	set := &Set{
		OpenAI: NewClient(NewOpenAIBackend(openaiCfg), persona, SettingsFromConfig(p.OpenAI, 120*time.Second), tracker),
		Claude: NewClient(NewAnthropicBackend(claudeCfg), persona, SettingsFromConfig(p.Claude, 600*time.Second), tracker),
		Cohere: NewClient(NewCohereBackend(cohereCfg), persona, cohereSettings, tracker),
		Gemini: NewClient(gemini, persona, SettingsFromConfig(p.Gemini, 600*time.Second), tracker),
		Search: NewPerplexitySearcher(pplxCfg, persona, SettingsFromConfig(p.Perplexity, 300*time.Second), tracker),
		Translator: NewDeepLTranslator(DeepLConfig{
			APIKey:  p.DeepL.APIKey,
			BaseURL: p.DeepL.BaseURL,
			Timeout: deeplSettings.Timeout,
		}, tracker),
	}

	for name, key := range map[Name]string{
		OpenAI: p.OpenAI.APIKey, Claude: p.Claude.APIKey, Cohere: p.Cohere.APIKey,
		Gemini: p.Gemini.APIKey, Perplexity: p.Perplexity.APIKey, DeepL: p.DeepL.APIKey,
	} {
		if key == "" {
			logging.BootWarn("%s API key not configured; %s calls will fail", name.Display(), name.Display())
		}
	}

	return set, nil
}
