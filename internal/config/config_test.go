package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "gpt-4o-mini", cfg.LLMModel)
	require.Equal(t, 4000, cfg.LLMMaxTokens)
	require.Equal(t, 60*time.Second, cfg.LLMTimeout)
	require.Equal(t, 25, cfg.BatchSize)
	require.Equal(t, 4000, cfg.MaxContentLen)
	require.Equal(t, 50, cfg.MessageCap)
	require.Equal(t, "6m", cfg.SearchWindow)
	require.EqualValues(t, 100, cfg.PageSize)
	require.Equal(t, 40, cfg.MinConfidence)
	require.Equal(t, 3, cfg.RetryAttempts)
	require.Equal(t, time.Second, cfg.RetryBackoff)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MAILSPEND_SCAN_MESSAGE_CAP", "10")
	t.Setenv("MAILSPEND_SCAN_MIN_CONFIDENCE", "60")
	t.Setenv("MAILSPEND_LLM_MODEL", "gpt-4o")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 10, cfg.MessageCap)
	require.Equal(t, 60, cfg.MinConfidence)
	require.Equal(t, "gpt-4o", cfg.LLMModel)
}

func TestLoadSecretFallbackEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "client-id", cfg.GoogleClientID)
	require.Equal(t, "client-secret", cfg.GoogleClientSecret)
	require.Equal(t, "sk-test", cfg.OpenAIAPIKey)
}
