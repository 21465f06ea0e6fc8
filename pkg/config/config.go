package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apierrors "hcexport/pkg/errors"
)

// TokenLength is the exact length of a HipChat v2 user token. Length is the
// only local validation; the real check is the first authenticated call.
const TokenLength = 40

// Config holds all configuration options for the exporter
type Config struct {
	// HipChat API settings
	HipChat HipChatConfig `yaml:"hipchat" json:"hipchat"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Export behavior
	Export ExportConfig `yaml:"export" json:"export"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// HipChatConfig holds API endpoint and credential settings
type HipChatConfig struct {
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	UserToken      string        `yaml:"user_token" json:"user_token"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// RateLimitConfig holds the call pacing and quota cooldown settings
type RateLimitConfig struct {
	// MinInterval is the minimum spacing between consecutive API calls.
	MinInterval time.Duration `yaml:"min_interval" json:"min_interval"`
	// WindowCalls is the number of calls allowed before a proactive cooldown.
	WindowCalls int `yaml:"window_calls" json:"window_calls"`
	// WindowCooldown is the pause inserted once WindowCalls is reached.
	WindowCooldown time.Duration `yaml:"window_cooldown" json:"window_cooldown"`
	// RetryCooldown is the pause after a server-signaled 429.
	RetryCooldown time.Duration `yaml:"retry_cooldown" json:"retry_cooldown"`
	// MaxAttempts bounds how often a throttled request is retried.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	RawJSON       bool   `yaml:"raw_json" json:"raw_json"`
}

// ExportConfig holds export behavior settings
type ExportConfig struct {
	PageSize int    `yaml:"page_size" json:"page_size"`
	ListOnly bool   `yaml:"list_only" json:"list_only"`
	User     string `yaml:"user" json:"user"`
	FailFast bool   `yaml:"fail_fast" json:"fail_fast"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Durations are written as strings ("500ms", "5m") in YAML, which the
// stock decoder cannot map onto time.Duration, hence the custom hooks.

func (h *HipChatConfig) UnmarshalYAML(value *yaml.Node) error {
	var aux struct {
		BaseURL        string `yaml:"base_url"`
		UserToken      string `yaml:"user_token"`
		RequestTimeout string `yaml:"request_timeout"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	if aux.BaseURL != "" {
		h.BaseURL = aux.BaseURL
	}
	if aux.UserToken != "" {
		h.UserToken = aux.UserToken
	}
	return setDuration(&h.RequestTimeout, aux.RequestTimeout)
}

func (h HipChatConfig) MarshalYAML() (interface{}, error) {
	return struct {
		BaseURL        string `yaml:"base_url"`
		UserToken      string `yaml:"user_token"`
		RequestTimeout string `yaml:"request_timeout"`
	}{h.BaseURL, h.UserToken, h.RequestTimeout.String()}, nil
}

func (r *RateLimitConfig) UnmarshalYAML(value *yaml.Node) error {
	var aux struct {
		MinInterval    string `yaml:"min_interval"`
		WindowCalls    *int   `yaml:"window_calls"`
		WindowCooldown string `yaml:"window_cooldown"`
		RetryCooldown  string `yaml:"retry_cooldown"`
		MaxAttempts    *int   `yaml:"max_attempts"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	if aux.WindowCalls != nil {
		r.WindowCalls = *aux.WindowCalls
	}
	if aux.MaxAttempts != nil {
		r.MaxAttempts = *aux.MaxAttempts
	}
	if err := setDuration(&r.MinInterval, aux.MinInterval); err != nil {
		return err
	}
	if err := setDuration(&r.WindowCooldown, aux.WindowCooldown); err != nil {
		return err
	}
	return setDuration(&r.RetryCooldown, aux.RetryCooldown)
}

func (r RateLimitConfig) MarshalYAML() (interface{}, error) {
	return struct {
		MinInterval    string `yaml:"min_interval"`
		WindowCalls    int    `yaml:"window_calls"`
		WindowCooldown string `yaml:"window_cooldown"`
		RetryCooldown  string `yaml:"retry_cooldown"`
		MaxAttempts    int    `yaml:"max_attempts"`
	}{
		r.MinInterval.String(),
		r.WindowCalls,
		r.WindowCooldown.String(),
		r.RetryCooldown.String(),
		r.MaxAttempts,
	}, nil
}

func setDuration(target *time.Duration, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*target = d
	return nil
}

// DefaultConfig returns a Config with the reference defaults: 2 calls/second
// pacing, a 95-call window with a 5 minute cooldown, 30 second 429 cooldown.
func DefaultConfig() *Config {
	return &Config{
		HipChat: HipChatConfig{
			BaseURL:        "https://api.hipchat.com",
			RequestTimeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			MinInterval:    500 * time.Millisecond,
			WindowCalls:    95,
			WindowCooldown: 5 * time.Minute,
			RetryCooldown:  30 * time.Second,
			MaxAttempts:    5,
		},
		Output: OutputConfig{
			BaseDirectory: "./hipchat_export",
			RawJSON:       true,
		},
		Export: ExportConfig{
			PageSize: 1000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if token := os.Getenv("HCEXPORT_USER_TOKEN"); token != "" {
		c.HipChat.UserToken = token
	}
	if baseURL := os.Getenv("HCEXPORT_BASE_URL"); baseURL != "" {
		c.HipChat.BaseURL = baseURL
	}
	if outputDir := os.Getenv("HCEXPORT_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if pageSize := os.Getenv("HCEXPORT_PAGE_SIZE"); pageSize != "" {
		if val, err := strconv.Atoi(pageSize); err == nil && val > 0 {
			c.Export.PageSize = val
		}
	}
	if logLevel := os.Getenv("HCEXPORT_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // no config file, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// findConfigFile searches for a config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".hcexport.yaml",
		".hcexport.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "hcexport", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".hcexport.yaml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks that the configuration can drive an export run.
func (c *Config) Validate() error {
	if len(c.HipChat.UserToken) != TokenLength {
		return apierrors.Usage("you must specify a valid HipChat user token (%d characters)", TokenLength)
	}
	if c.HipChat.BaseURL == "" {
		return apierrors.Usage("API base URL is required")
	}
	if c.RateLimit.MinInterval <= 0 {
		return apierrors.Usage("rate limit interval must be positive")
	}
	if c.RateLimit.MaxAttempts <= 0 {
		return apierrors.Usage("max attempts must be positive")
	}
	if c.Export.PageSize <= 0 {
		return apierrors.Usage("page size must be positive")
	}
	if c.Output.BaseDirectory == "" {
		return apierrors.Usage("output directory is required")
	}
	return nil
}

// Save writes the configuration to a YAML file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeFlags merges command line flag values into the configuration
func (c *Config) MergeFlags(flags map[string]interface{}) {
	if token, ok := flags["user-token"].(string); ok && token != "" {
		c.HipChat.UserToken = token
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if rawJSON, ok := flags["raw-json"].(bool); ok {
		c.Output.RawJSON = rawJSON
	}
	if listOnly, ok := flags["list"].(bool); ok {
		c.Export.ListOnly = listOnly
	}
	if user, ok := flags["user"].(string); ok && user != "" {
		c.Export.User = user
	}
	if failFast, ok := flags["fail-fast"].(bool); ok {
		c.Export.FailFast = failFast
	}
	if maxAttempts, ok := flags["max-attempts"].(int); ok && maxAttempts > 0 {
		c.RateLimit.MaxAttempts = maxAttempts
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment variables > .env file > config file > defaults
//
// Validation is the caller's job: the token may still arrive from a
// credential store after Load.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".hcexport.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg.MergeFlags(flags)

	return cfg, nil
}
