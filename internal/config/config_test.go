package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CREDENTIALS_KEY", "c2VjcmV0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.AppURL)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "v1", cfg.CredentialsKeyID)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.CredentialsKeyFallbacks)
}

func TestLoadRequiresCredentialsKey(t *testing.T) {
	t.Setenv("CREDENTIALS_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CREDENTIALS_KEY", "c2VjcmV0")
	t.Setenv("CREDENTIALS_KEY_ID", "v3")
	t.Setenv("PORT", "9090")
	t.Setenv("APP_URL", "https://commerce.example.com")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "v3", cfg.CredentialsKeyID)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://commerce.example.com", cfg.AppURL)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
}

func TestParseKeyFallbacks(t *testing.T) {
	fallbacks, err := parseKeyFallbacks("v1:a2V5MQ==, v0:a2V5MA==")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"v1": "a2V5MQ==", "v0": "a2V5MA=="}, fallbacks)

	fallbacks, err = parseKeyFallbacks("")
	require.NoError(t, err)
	assert.Empty(t, fallbacks)

	_, err = parseKeyFallbacks("missing-separator")
	assert.Error(t, err)

	_, err = parseKeyFallbacks(":nokey")
	assert.Error(t, err)
}
