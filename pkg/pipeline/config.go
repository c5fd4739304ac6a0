package pipeline

import (
	"fmt"
	"net/url"
	"strings"

	"go.mau.fi/util/ptr"
)

const (
	DefaultModel          = "gemini-2.5-flash"
	DefaultTimeoutSecs    = 30
	DefaultMaxAttempts    = 3
	DefaultRetryBackoffMS = 1000
	DefaultSearchCount    = 10
	MaxSearchCount        = 100
	MaxQueryLength        = 2000

	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Config controls the completions endpoint, credentials and retry budget.
type Config struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	Mode           string `yaml:"mode"`
	TimeoutSecs    int    `yaml:"timeout_seconds"`
	MaxAttempts    int    `yaml:"max_attempts"`
	RetryBackoffMS int    `yaml:"retry_backoff_ms"`
	WebSearch      *bool  `yaml:"web_search"`
}

func (c *Config) WithDefaults() *Config {
	if c == nil {
		c = &Config{}
	}
	if strings.TrimSpace(c.Model) == "" {
		c.Model = DefaultModel
	}
	if strings.TrimSpace(c.Mode) == "" {
		c.Mode = ModeDevelopment
	}
	if c.TimeoutSecs <= 0 {
		c.TimeoutSecs = DefaultTimeoutSecs
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryBackoffMS <= 0 {
		c.RetryBackoffMS = DefaultRetryBackoffMS
	}
	if c.WebSearch == nil {
		c.WebSearch = ptr.Ptr(true)
	}
	return c
}

// MergeConfig fills empty fields of dst from src and returns dst. Fields
// already set on dst always win, so layering flag, environment and file
// sources is a chain of MergeConfig calls from highest to lowest priority.
func MergeConfig(dst, src *Config) *Config {
	if dst == nil {
		dst = &Config{}
	}
	if src == nil {
		return dst
	}
	if strings.TrimSpace(dst.BaseURL) == "" {
		dst.BaseURL = src.BaseURL
	}
	if strings.TrimSpace(dst.APIKey) == "" {
		dst.APIKey = src.APIKey
	}
	if strings.TrimSpace(dst.Model) == "" {
		dst.Model = src.Model
	}
	if strings.TrimSpace(dst.Mode) == "" {
		dst.Mode = src.Mode
	}
	if dst.TimeoutSecs <= 0 {
		dst.TimeoutSecs = src.TimeoutSecs
	}
	if dst.MaxAttempts <= 0 {
		dst.MaxAttempts = src.MaxAttempts
	}
	if dst.RetryBackoffMS <= 0 {
		dst.RetryBackoffMS = src.RetryBackoffMS
	}
	if dst.WebSearch == nil {
		dst.WebSearch = ptr.Clone(src.WebSearch)
	}
	return dst
}

// Redacted returns a copy safe for logging or display.
func (c Config) Redacted() Config {
	if key := strings.TrimSpace(c.APIKey); key != "" {
		c.APIKey = redactKey(key)
	}
	c.WebSearch = ptr.Clone(c.WebSearch)
	return c
}

func redactKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// NormalizeBaseURL trims whitespace and trailing slashes and verifies the
// result is an absolute http(s) URL. Normalizing an already normalized
// value returns it unchanged.
func NormalizeBaseURL(raw string) (string, error) {
	normalized := strings.TrimRight(strings.TrimSpace(raw), "/")
	if normalized == "" {
		return "", ErrMissingBaseURL
	}
	parsed, err := url.Parse(normalized)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("base url must use http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("base url %q has no host", normalized)
	}
	return normalized, nil
}

func isEnabled(flag *bool, fallback bool) bool {
	if flag == nil {
		return fallback
	}
	return *flag
}
