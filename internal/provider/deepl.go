package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ukiyo/internal/logging"
	"ukiyo/internal/usage"
)

// DefaultTargetLang is used when the caller gives no target language.
const DefaultTargetLang = "JA"

var deeplLangMap = map[string]string{
	"en": "EN-US",
	"pt": "PT-PT",
	"zh": "ZH",
	"ja": "JA",
	"es": "ES",
	"fr": "FR",
	"de": "DE",
	"it": "IT",
}

// DeepLLang maps a short language code onto DeepL's target code.
// Unknown codes are upper-cased.
func DeepLLang(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return DefaultTargetLang
	}
	if mapped, ok := deeplLangMap[strings.ToLower(code)]; ok {
		return mapped
	}
	return strings.ToUpper(code)
}

// DeepLConfig holds configuration for the DeepL translate API.
type DeepLConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// DeepLTranslator implements Translator.
type DeepLTranslator struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	tracker    *usage.Tracker
}

// NewDeepLTranslator creates a new translator. Free-tier keys (":fx" suffix)
// default to the free API host.
func NewDeepLTranslator(cfg DeepLConfig, tracker *usage.Tracker) *DeepLTranslator {
	key := strings.TrimSpace(cfg.APIKey)
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.deepl.com"
		if strings.HasSuffix(key, ":fx") {
			base = "https://api-free.deepl.com"
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DeepLTranslator{
		apiKey:     key,
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		tracker:    tracker,
	}
}

type deeplRequest struct {
	Text       []string `json:"text"`
	TargetLang string   `json:"target_lang"`
}

type deeplResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
	Message string `json:"message"`
}

// Translate translates text into targetLang.
func (d *DeepLTranslator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if d.apiKey == "" {
		return "", fmt.Errorf("DeepL translator is not configured: %w", ErrNotInitialized)
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("nothing to translate")
	}

	target := DeepLLang(targetLang)
	jsonData, err := json.Marshal(deeplRequest{Text: []string{text}, TargetLang: target})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v2/translate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.apiKey)

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("DeepL request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("DeepL request failed with status %d: %s", resp.StatusCode, truncateBody(body))
	}

	var dr deeplResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(dr.Translations) == 0 {
		return "", errors.New("DeepL returned no translations")
	}

	if d.tracker != nil {
		// DeepL bills characters, recorded as input tokens.
		d.tracker.Track(ctx, "deepl", string(DeepL), len([]rune(text)), 0, "translate")
	}
	logging.APIDebug("[DeepL] translated %d chars to %s in %v", len([]rune(text)), target, time.Since(start))
	return dr.Translations[0].Text, nil
}
