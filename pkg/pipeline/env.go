package pipeline

import (
	"os"
	"strconv"
	"strings"

	"go.mau.fi/util/ptr"

	"github.com/modelsurf/searchbridge/pkg/shared/stringutil"
)

// ConfigFromEnv builds a pipeline config using environment variables.
func ConfigFromEnv() *Config {
	return EnvConfig().WithDefaults()
}

// ApplyEnvDefaults fills empty config fields from environment variables,
// then applies the built-in defaults. Explicitly set fields always win
// over the environment.
func ApplyEnvDefaults(cfg *Config) *Config {
	if cfg == nil {
		return ConfigFromEnv()
	}
	return MergeConfig(cfg, EnvConfig()).WithDefaults()
}

// EnvConfig reads the environment into a raw config without applying
// defaults. SEARCHBRIDGE_* variables take precedence over the OPENAI_*
// fallbacks for the endpoint and credential.
func EnvConfig() *Config {
	return &Config{
		BaseURL:        stringutil.FirstNonEmpty(os.Getenv("SEARCHBRIDGE_BASE_URL"), os.Getenv("OPENAI_BASE_URL")),
		APIKey:         stringutil.FirstNonEmpty(os.Getenv("SEARCHBRIDGE_API_KEY"), os.Getenv("OPENAI_API_KEY")),
		Model:          strings.TrimSpace(os.Getenv("SEARCHBRIDGE_MODEL")),
		Mode:           strings.TrimSpace(os.Getenv("SEARCHBRIDGE_MODE")),
		TimeoutSecs:    intFromEnv("SEARCHBRIDGE_TIMEOUT_SECONDS"),
		MaxAttempts:    intFromEnv("SEARCHBRIDGE_MAX_ATTEMPTS"),
		RetryBackoffMS: intFromEnv("SEARCHBRIDGE_RETRY_BACKOFF_MS"),
		WebSearch:      boolFromEnv("SEARCHBRIDGE_WEB_SEARCH"),
	}
}

func intFromEnv(name string) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}

func boolFromEnv(name string) *bool {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return nil
	}
	return ptr.Ptr(parsed)
}
