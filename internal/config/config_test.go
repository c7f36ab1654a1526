package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "in-memory", cfg.Storage)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, RateRule{Limit: 5, Window: time.Minute}, cfg.RateLimits["create"])
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rubbhub.yaml")
	err := os.WriteFile(path, []byte(`
addr: ":9000"
log_level: debug
token_ttl: 1h
invite_codes: [alpha, beta]
rate_limits:
  api: {limit: 7, window: 30s}
`), 0o600)
	require.NoError(t, err)

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("RUBBHUB_CORS_ORIGINS", "https://a.io, https://b.io")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.InviteCodes)
	assert.Equal(t, []string{"https://a.io", "https://b.io"}, cfg.CORSOrigins)
	assert.Equal(t, RateRule{Limit: 7, Window: 30 * time.Second}, cfg.RateLimits["api"])
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("RUBBHUB_STORAGE", "postgres")
	t.Setenv("DATABASE_URL", "")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("RUBBHUB_STORAGE", "mysql")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoad_ProductionNeedsSecret(t *testing.T) {
	t.Setenv("NODE_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	_, err := Load("")
	assert.Error(t, err)
}
