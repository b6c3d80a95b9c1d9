package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv removes keys for the duration of the test; empty values would override defaults.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("DIFY_API_URL", "https://api.dify.ai/v1")
	t.Setenv("DIFY_API_KEY", "app-wf")
	t.Setenv("DIFY_CHAT_API_KEY", "app-chat")
	unsetEnv(t, "DIFY_CHAT_API_URL", "HTTP_PORT", "APP_ENV", "CORS_ALLOWED_ORIGINS", "DIFY_USER", "DIFY_TIMEOUT")

	cfg, _, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "vibe-creator-user", cfg.Gateway.User)
	assert.Equal(t, 120*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.False(t, cfg.IsProduction())

	// Chat URL falls back to the workflow URL.
	assert.Equal(t, "https://api.dify.ai/v1", cfg.Gateway.ChatEndpoint().BaseURL)
	assert.Equal(t, "app-chat", cfg.Gateway.ChatEndpoint().APIKey)
	assert.Equal(t, "app-wf", cfg.Gateway.AnalysisEndpoint().APIKey)
}

func TestLoadConfig_SeparateChatURLAndOrigins(t *testing.T) {
	t.Setenv("STORE_DRIVER", "redis")
	t.Setenv("DIFY_API_URL", "https://wf.example")
	t.Setenv("DIFY_CHAT_API_URL", "https://chat.example")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("APP_ENV", "Production")
	unsetEnv(t, "DIFY_TIMEOUT", "HTTP_PORT")

	cfg, _, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example", cfg.Gateway.ChatEndpoint().BaseURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.IsProduction())
}

func TestLoadConfig_StoreValidation(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	_, _, err := LoadConfig()
	assert.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("STORE_DRIVER", "mongo")
	_, _, err = LoadConfig()
	assert.ErrorContains(t, err, "unknown STORE_DRIVER")
}
