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
	"sync"
	"time"

	"ukiyo/internal/logging"
)

// CohereConfig holds configuration for the Cohere chat API.
type CohereConfig struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
	Timeout    time.Duration
	// RetryBaseDelay is the first backoff step; it doubles per attempt.
	RetryBaseDelay time.Duration
}

// DefaultCohereConfig returns sensible defaults.
func DefaultCohereConfig(apiKey string) CohereConfig {
	return CohereConfig{
		APIKey:         apiKey,
		BaseURL:        "https://api.cohere.ai",
		MaxRetries:     3,
		Timeout:        300 * time.Second,
		RetryBaseDelay: time.Second,
	}
}

// CohereBackend implements Backend for Cohere's /v1/chat endpoint.
type CohereBackend struct {
	apiKey      string
	baseURL     string
	maxRetries  int
	retryBase   time.Duration
	httpClient  *http.Client
	mu          sync.Mutex
	lastRequest time.Time
}

// NewCohereBackend creates a new Cohere backend.
func NewCohereBackend(cfg CohereConfig) *CohereBackend {
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	return &CohereBackend{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBaseDelay,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (b *CohereBackend) Name() Name { return Cohere }

func (b *CohereBackend) Quirks() Quirks {
	return Quirks{RoleNames: map[Role]string{RoleUser: "USER", RoleAssistant: "CHATBOT"}}
}

type cohereHistoryItem struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

type cohereRequest struct {
	Message     string              `json:"message"`
	Model       string              `json:"model"`
	Preamble    string              `json:"preamble,omitempty"`
	ChatHistory []cohereHistoryItem `json:"chat_history,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

type cohereResponse struct {
	Text    string `json:"text"`
	Message string `json:"message"` // error body
	Meta    struct {
		BilledUnits struct {
			InputTokens  float64 `json:"input_tokens"`
			OutputTokens float64 `json:"output_tokens"`
		} `json:"billed_units"`
	} `json:"meta"`
}

// Send posts one chat request. The final user turn becomes the message and
// the turns before it become chat_history.
func (b *CohereBackend) Send(ctx context.Context, model string, conv Conversation, s Settings) (Reply, error) {
	if b.apiKey == "" {
		return Reply{}, ErrNotInitialized
	}

	n := len(conv.Turns)
	if n == 0 || conv.Turns[n-1].Role != RoleUser || strings.TrimSpace(conv.Turns[n-1].Content) == "" {
		return Reply{}, errors.New("current user message is empty")
	}

	q := b.Quirks()
	history := make([]cohereHistoryItem, 0, n-1)
	for _, t := range conv.Turns[:n-1] {
		history = append(history, cohereHistoryItem{Role: q.RoleName(t.Role), Message: t.Content})
	}

	reqBody := cohereRequest{
		Message:     conv.Turns[n-1].Content,
		Model:       model,
		Preamble:    strings.TrimSpace(conv.System),
		ChatHistory: history,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Rate limiting
	b.mu.Lock()
	elapsed := time.Since(b.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	b.lastRequest = time.Now()
	b.mu.Unlock()

	logging.APIDebug("[Cohere] chat: model=%s history=%d preamble_len=%d", model, len(history), len(reqBody.Preamble))

	var lastErr error
	for i := 0; i <= b.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return Reply{}, ctx.Err()
			case <-time.After(b.retryBase * time.Duration(1<<uint(i-1))):
			}
		}

		reply, retry, err := b.do(ctx, jsonData)
		if err == nil {
			return reply, nil
		}
		if !retry {
			return Reply{}, err
		}
		lastErr = err
		logging.APIWarn("[Cohere] attempt %d failed: %v", i+1, err)
	}

	return Reply{}, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// do performs one HTTP attempt and reports whether a failure is retryable.
func (b *CohereBackend) do(ctx context.Context, body []byte) (Reply, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return Reply{}, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Reply{}, false, ctx.Err()
		}
		return Reply{}, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, true, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Reply{}, true, errors.New("rate limit exceeded (429)")
	case resp.StatusCode >= 500:
		return Reply{}, true, fmt.Errorf("server error %d: %s", resp.StatusCode, truncateBody(data))
	case resp.StatusCode != http.StatusOK:
		return Reply{}, false, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, truncateBody(data))
	}

	var cr cohereResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return Reply{}, false, fmt.Errorf("failed to parse response: %w", err)
	}
	text := strings.TrimSpace(cr.Text)
	if text == "" {
		return Reply{}, false, errors.New("empty response from model")
	}
	return Reply{
		Text:         text,
		InputTokens:  int(cr.Meta.BilledUnits.InputTokens),
		OutputTokens: int(cr.Meta.BilledUnits.OutputTokens),
	}, false, nil
}

func truncateBody(b []byte) string {
	return logging.Truncate(strings.TrimSpace(string(b)), 300)
}
