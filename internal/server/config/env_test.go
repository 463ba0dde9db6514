package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_OverlaysSetVariables(t *testing.T) {
	t.Setenv("MINITWIT_STORAGE", "redis")
	t.Setenv("MINITWIT_REDIS_ADDR", "cache:6379")
	t.Setenv("MINITWIT_REDIS_DB", "3")
	t.Setenv("MINITWIT_JWT_KEY", "env-key")
	t.Setenv("MINITWIT_ACCESS_TOKEN_TTL", "2")
	t.Setenv("MINITWIT_REFRESH_TOKEN_TTL", "90s")
	t.Setenv("MINITWIT_ARGON2_PARALLELISM", "2")
	t.Setenv("MINITWIT_SEED_DEMO_USERS", "true")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg, "")

	assert.Equal(t, StorageRedis, cfg.StorageBackend)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, "env-key", cfg.SecretKey)
	assert.Equal(t, 2*time.Minute, cfg.AccessTokenValidityDuration)
	assert.Equal(t, 90*time.Second, cfg.RefreshTokenValidityDuration)
	assert.EqualValues(t, 2, cfg.Argon2.Parallelism)
	assert.True(t, cfg.SeedDemoUsers)

	// untouched
	assert.Equal(t, ":50051", cfg.EndpointAddrGRPC)
	assert.Equal(t, "minitwit", cfg.Issuer)
}

func TestParseEnv_DotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MINITWIT_JWT_ISSUER=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("MINITWIT_JWT_ISSUER") })

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg, path)

	assert.Equal(t, "from-dotenv", cfg.Issuer)
}

func TestParseEnv_MissingDotenvIsIgnored(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()
	require.NotPanics(t, func() { parseEnv(cfg, filepath.Join(t.TempDir(), "absent.env")) })
}

func TestParseEnv_BadDurationPanics(t *testing.T) {
	t.Setenv("MINITWIT_ACCESS_TOKEN_TTL", "whenever")

	cfg := &Config{}
	require.Panics(t, func() { parseEnv(cfg, "") })
}
