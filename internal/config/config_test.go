package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"DATABASE_URL":   "postgres://localhost/resale",
		"GEMINI_API_KEY": "key",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ProviderGemini, cfg.LLMProvider)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.Equal(t, 8, cfg.ProgressEvery)
	assert.Equal(t, 10*time.Minute, cfg.StaleAfter)
	assert.Equal(t, int64(10), cfg.MaxUploadMB)
	assert.True(t, cfg.AllowAllOrigins())
}

func TestFromEnv_OpenAI(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"DATABASE_URL":    "postgres://localhost/resale",
		"LLM_PROVIDER":    "OpenAI",
		"OPENAI_API_KEY":  "sk-test",
		"OPENAI_BASE_URL": "http://llm.internal/v1/",
		"CORS_ORIGINS":    "https://a.example, https://b.example",
	}))
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, "http://llm.internal/v1", cfg.OpenAIBaseURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.False(t, cfg.AllowAllOrigins())
}

func TestFromEnv_CollectsAllErrors(t *testing.T) {
	_, err := FromEnv(envMap(map[string]string{
		"LLM_PROVIDER":            "claude",
		"ANALYSIS_PROGRESS_EVERY": "zero",
		"ANALYSIS_STALE_AFTER":    "-1m",
	}))
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "DATABASE_URL is required")
	assert.Contains(t, msg, "LLM_PROVIDER")
	assert.Contains(t, msg, "ANALYSIS_PROGRESS_EVERY")
	assert.Contains(t, msg, "ANALYSIS_STALE_AFTER")
}
