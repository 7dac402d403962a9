// Package config loads mailspend settings from config file, environment
// and defaults.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all tunable parameters for the scan pipeline.
type Config struct {
	// OAuth client for the Gmail API.
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Classifier.
	OpenAIAPIKey  string
	LLMModel      string
	LLMMaxTokens  int
	LLMTimeout    time.Duration
	BatchSize     int
	MaxContentLen int

	// Candidate selection.
	MessageCap    int
	SearchWindow  string
	PageSize      int64
	MinConfidence int

	// Retry policy for idempotent provider calls.
	RetryAttempts int
	RetryBackoff  time.Duration
}

// Load reads configuration with viper: defaults, then an optional
// mailspend.yaml, then MAILSPEND_* environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.max_tokens", 4000)
	v.SetDefault("llm.timeout_sec", 60)
	v.SetDefault("scan.batch_size", 25)
	v.SetDefault("scan.max_content_len", 4000)
	v.SetDefault("scan.message_cap", 50)
	v.SetDefault("scan.search_window", "6m")
	v.SetDefault("scan.page_size", 100)
	v.SetDefault("scan.min_confidence", 40)
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.backoff_ms", 1000)

	v.SetConfigName("mailspend")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/mailspend")
	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; env and defaults still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	v.SetEnvPrefix("mailspend")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider secrets come from the conventional unprefixed variables too.
	_ = v.BindEnv("google.client_id", "MAILSPEND_GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_ID")
	_ = v.BindEnv("google.client_secret", "MAILSPEND_GOOGLE_CLIENT_SECRET", "GOOGLE_CLIENT_SECRET")
	_ = v.BindEnv("google.redirect_url", "MAILSPEND_GOOGLE_REDIRECT_URL", "GOOGLE_REDIRECT_URL")
	_ = v.BindEnv("openai.api_key", "MAILSPEND_OPENAI_API_KEY", "OPENAI_API_KEY")

	return &Config{
		GoogleClientID:     v.GetString("google.client_id"),
		GoogleClientSecret: v.GetString("google.client_secret"),
		GoogleRedirectURL:  v.GetString("google.redirect_url"),

		OpenAIAPIKey:  v.GetString("openai.api_key"),
		LLMModel:      v.GetString("llm.model"),
		LLMMaxTokens:  v.GetInt("llm.max_tokens"),
		LLMTimeout:    time.Duration(v.GetInt("llm.timeout_sec")) * time.Second,
		BatchSize:     v.GetInt("scan.batch_size"),
		MaxContentLen: v.GetInt("scan.max_content_len"),

		MessageCap:    v.GetInt("scan.message_cap"),
		SearchWindow:  v.GetString("scan.search_window"),
		PageSize:      v.GetInt64("scan.page_size"),
		MinConfidence: v.GetInt("scan.min_confidence"),

		RetryAttempts: v.GetInt("retry.attempts"),
		RetryBackoff:  time.Duration(v.GetInt("retry.backoff_ms")) * time.Millisecond,
	}, nil
}
