// Package cmd implements the searchbridge CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.mau.fi/util/ptr"
	"gopkg.in/yaml.v3"

	"github.com/modelsurf/searchbridge/pkg/pipeline"
)

var (
	cfgFile       string
	flagBaseURL   string
	flagAPIKey    string
	flagModel     string
	flagMode      string
	flagTimeout   int
	flagAttempts  int
	flagBackoffMS int
	flagWebSearch bool

	appVersion = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "searchbridge",
	Short: "searchbridge — web search and page fetch through an OpenAI-compatible endpoint",
	Long: "searchbridge turns an OpenAI-compatible chat completions endpoint with hosted\n" +
		"web search into a small search/fetch toolkit: a CLI for one-off queries and an\n" +
		"MCP stdio server for agents.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "searchbridge.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "completions endpoint base URL")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "bearer token for the endpoint")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "model to request")
	rootCmd.PersistentFlags().StringVar(&flagMode, "mode", "", "development or production")
	rootCmd.PersistentFlags().IntVar(&flagTimeout, "timeout", 0, "per-attempt timeout in seconds")
	rootCmd.PersistentFlags().IntVar(&flagAttempts, "max-attempts", 0, "how many times to try a request")
	rootCmd.PersistentFlags().IntVar(&flagBackoffMS, "backoff-ms", 0, "base retry delay in milliseconds")
	rootCmd.PersistentFlags().BoolVar(&flagWebSearch, "web-search", true, "attach the hosted web search tool")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

// SetVersionInfo sets the version and commit for display.
func SetVersionInfo(version, commit string) {
	appVersion = version
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("searchbridge %s (commit: %s)\n", version, commit))
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig layers the configuration sources: flags beat environment
// variables, which beat the config file, which beats built-in defaults.
func resolveConfig(cmd *cobra.Command) (*pipeline.Config, error) {
	fromFile, err := loadConfigFile(cmd)
	if err != nil {
		return nil, err
	}
	cfg := flagConfig(cmd)
	cfg = pipeline.MergeConfig(cfg, pipeline.EnvConfig())
	cfg = pipeline.MergeConfig(cfg, fromFile)
	return cfg.WithDefaults(), nil
}

func flagConfig(cmd *cobra.Command) *pipeline.Config {
	cfg := &pipeline.Config{
		BaseURL:        strings.TrimSpace(flagBaseURL),
		APIKey:         strings.TrimSpace(flagAPIKey),
		Model:          strings.TrimSpace(flagModel),
		Mode:           strings.TrimSpace(flagMode),
		TimeoutSecs:    flagTimeout,
		MaxAttempts:    flagAttempts,
		RetryBackoffMS: flagBackoffMS,
	}
	if cmd != nil && cmd.Flags().Changed("web-search") {
		cfg.WebSearch = ptr.Ptr(flagWebSearch)
	}
	return cfg
}

func loadConfigFile(cmd *cobra.Command) (*pipeline.Config, error) {
	path := strings.TrimSpace(cfgFile)
	if path == "" {
		return nil, nil
	}
	explicit := cmd != nil && cmd.Flags().Changed("config")
	data, err := os.ReadFile(path)
	if err != nil {
		// The default path is optional; an explicitly passed one is not.
		if os.IsNotExist(err) && !explicit {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg pipeline.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

func newClient(cmd *cobra.Command) (*pipeline.Client, *pipeline.Config, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	client, err := pipeline.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd == nil || cmd.Context() == nil {
		return context.Background()
	}
	return cmd.Context()
}

func newLogger(mode string) zerolog.Logger {
	level := zerolog.DebugLevel
	if mode == pipeline.ModeProduction {
		level = zerolog.ErrorLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
