package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPersona is the character/tone instruction prepended to general chat
// prompts. Search-formatting tasks never receive it.
const DefaultPersona = `You are "Ukiyo", a sleepy, easygoing monkey character.
Use the name "Ukiyo" for yourself sparingly: once at the start or at a turning point of the conversation.
Address the user warmly and casually.
Sprinkle relaxed verbal tics ("take it easy", "that could work too", "...") into about one in five sentences at most. Ordinary polite phrasing is fine everywhere else.
Keep a calm, unhurried, gentle mood. Be glad about small things, and never get angry or dismissive.
Content and clarity always come first. The character should only be a faint flavour.`

// Config holds all ukiyo configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Providers ProvidersConfig `yaml:"providers"`
	Persona   string          `yaml:"persona"`
	Memory    MemoryConfig    `yaml:"memory"`
	Logging   LoggingConfig   `yaml:"logging"`
	Usage     UsageConfig     `yaml:"usage"`
}

// ServerConfig configures the HTTP glue.
type ServerConfig struct {
	ListenAddr         string `yaml:"listen_addr"`
	JWTSecret          string `yaml:"jwt_secret"`
	TokenTTL           string `yaml:"token_ttl"`
	MaxUploadBytes     int64  `yaml:"max_upload_bytes"`
	GeneratedFilesDir  string `yaml:"generated_files_dir"`
	MaxConcurrentFlows int64  `yaml:"max_concurrent_flows"`
}

// StoreConfig configures SQLite persistence.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// UsageConfig configures the token usage tracker.
type UsageConfig struct {
	File string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:         ":8000",
			TokenTTL:           "168h",
			MaxUploadBytes:     10 << 20,
			GeneratedFilesDir:  "data/generated",
			MaxConcurrentFlows: 8,
		},
		Store: StoreConfig{
			DatabasePath: "data/ukiyo.db",
		},
		Providers: DefaultProvidersConfig(),
		Persona:   DefaultPersona,
		Memory: MemoryConfig{
			MaxFormattedLength: 2000,
			MaxRecordsPerUser:  100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Usage: UsageConfig{
			File: "data/usage.json",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults with environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Providers.OpenAI.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.Providers.Claude.APIKey = key
	}
	if key := os.Getenv("COHERE_API_KEY"); key != "" {
		c.Providers.Cohere.APIKey = key
	}
	if key := os.Getenv("PERPLEXITY_API_KEY"); key != "" {
		c.Providers.Perplexity.APIKey = key
	}
	// GEMINI_API_KEY wins over the older GOOGLE_API_KEY name
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.Providers.Gemini.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Providers.Gemini.APIKey = key
	}
	if key := os.Getenv("DEEPL_API_KEY"); key != "" {
		c.Providers.DeepL.APIKey = key
	}

	if secret := os.Getenv("UKIYO_JWT_SECRET"); secret != "" {
		c.Server.JWTSecret = secret
	}
	if path := os.Getenv("UKIYO_DB_PATH"); path != "" {
		c.Store.DatabasePath = path
	}
	if addr := os.Getenv("UKIYO_LISTEN_ADDR"); addr != "" {
		c.Server.ListenAddr = addr
	}
	if level := os.Getenv("UKIYO_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetTokenTTL returns the JWT lifetime as a duration.
func (c *Config) GetTokenTTL() time.Duration {
	d, err := time.ParseDuration(c.Server.TokenTTL)
	if err != nil || d <= 0 {
		return 7 * 24 * time.Hour
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Server.ListenAddr) == "" {
		errs = append(errs, errors.New("server.listen_addr must not be empty"))
	}
	if strings.TrimSpace(c.Store.DatabasePath) == "" {
		errs = append(errs, errors.New("store.database_path must not be empty"))
	}
	if c.Memory.MaxRecordsPerUser <= 0 {
		errs = append(errs, fmt.Errorf("memory.max_records_per_user must be positive, got %d", c.Memory.MaxRecordsPerUser))
	}
	if c.Memory.MaxFormattedLength <= 0 {
		errs = append(errs, fmt.Errorf("memory.max_formatted_length must be positive, got %d", c.Memory.MaxFormattedLength))
	}
	if c.Server.MaxConcurrentFlows <= 0 {
		errs = append(errs, fmt.Errorf("server.max_concurrent_flows must be positive, got %d", c.Server.MaxConcurrentFlows))
	}
	if c.Server.TokenTTL != "" {
		if err := checkDuration("server.token_ttl", c.Server.TokenTTL); err != nil {
			errs = append(errs, err)
		}
	}

	providers := map[string]ProviderConfig{
		"openai":     c.Providers.OpenAI,
		"claude":     c.Providers.Claude,
		"cohere":     c.Providers.Cohere,
		"gemini":     c.Providers.Gemini,
		"perplexity": c.Providers.Perplexity,
		"deepl":      c.Providers.DeepL,
	}
	for _, name := range []string{"openai", "claude", "cohere", "gemini", "perplexity", "deepl"} {
		p := providers[name]
		if p.Timeout != "" {
			if err := checkDuration("providers."+name+".timeout", p.Timeout); err != nil {
				errs = append(errs, err)
			}
		}
		if p.MaxTokens < 0 {
			errs = append(errs, fmt.Errorf("providers.%s.max_tokens must not be negative", name))
		}
	}

	return errors.Join(errs...)
}

func checkDuration(field, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must not be negative, got %s", field, value)
	}
	return nil
}
