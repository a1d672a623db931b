package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "ENVIRONMENT", "ALLOWED_ORIGINS", "LLM_PROVIDER", "DB_DRIVER", "HISTORY_MAX_MESSAGES", "WEATHER_CACHE_TTL_SECONDS", "QUOTA_PER_SESSION"} {
		t.Setenv(k, "")
	}
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Addr())
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, "gemini", cfg.LLMProvider)
	assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	assert.Equal(t, "memory", cfg.DBDriver)
	assert.Equal(t, 20, cfg.HistoryMaxMessages)
	assert.Equal(t, 30*time.Minute, cfg.WeatherCacheTTL)
}

func TestLoadProductionAllowsAllOrigins(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("VIAJEIA_TEST_ONLY=1\nWEATHER_CACHE_TTL_SECONDS=60\n"), 0o600))
	t.Setenv("WEATHER_CACHE_TTL_SECONDS", "")
	os.Unsetenv("WEATHER_CACHE_TTL_SECONDS")
	t.Cleanup(func() { os.Unsetenv("VIAJEIA_TEST_ONLY") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.WeatherCacheTTL)
	assert.Equal(t, "1", os.Getenv("VIAJEIA_TEST_ONLY"))
}

func TestLoadMissingEnvFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "claude")
	_, err := Load("")
	require.Error(t, err)

	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("HISTORY_MAX_MESSAGES", "diez")
	_, err = Load("")
	require.Error(t, err)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "***", Mask("short"))
	assert.Equal(t, "abcdefghij...wxyz", Mask("abcdefghijklmnopqrstuvwxyz"))
}
