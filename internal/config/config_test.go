package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/pathflow"
	"github.com/aretw0/pathflow/internal/config"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hexKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pathflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, []string{"signals"}, cfg.Signals.Paths)
	assert.Equal(t, config.DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "localhost:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, ".pathflow/runs", cfg.Store.File.Path)
	assert.Equal(t, "/api/v1", cfg.HTTP.BaseURL)
	assert.Empty(t, cfg.Storage.Sync)
	assert.Equal(t, "tools.yaml", cfg.Tools.Path)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, pathflow.OutputPolicyLinear, policy)
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
store:
  driver: redis
  redis:
    addr: redis:6379
    ttl: 1h
storage:
  sync: [cart, profile]
output_policy: strict
security:
  encryption_key: `+hexKey+`
  pii_patterns: ["(?i)password"]
`)
	t.Setenv("PATHFLOW_STORE_REDIS_DB", "3")
	t.Setenv("PATHFLOW_LOG_LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("addr", ":8080", "")
	require.NoError(t, flags.Parse([]string{"--addr", ":9999"}))

	cfg, err := config.Load(path, map[string]*pflag.Flag{"server.addr": flags.Lookup("addr")})
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level, "env overrides file")
	assert.Equal(t, ":9999", cfg.Server.Addr, "flag overrides default")
	assert.Equal(t, config.DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 3, cfg.Store.Redis.DB)
	assert.Equal(t, time.Hour, cfg.Store.Redis.TTL)
	assert.Equal(t, []string{"cart", "profile"}, cfg.Storage.Sync)
	assert.Equal(t, []string{"(?i)password"}, cfg.Security.PIIPatterns)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, pathflow.OutputPolicyStrict, policy)

	active, fallback, err := cfg.Security.Keys()
	require.NoError(t, err)
	assert.Len(t, active, 32)
	assert.Empty(t, fallback)
}

func TestLoad_EnvSlices(t *testing.T) {
	t.Setenv("PATHFLOW_STORAGE_SYNC", "a,b")
	t.Setenv("PATHFLOW_SIGNALS_PATHS", "flows")

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cfg.Storage.Sync)
	assert.Equal(t, []string{"flows"}, cfg.Signals.Paths)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"Unknown Driver", "store:\n  driver: sqlite\n", "store.driver"},
		{"Unknown Policy", "output_policy: lenient\n", "output_policy"},
		{"Unknown Level", "log:\n  level: loud\n", "unknown log level"},
		{"Short Key", "security:\n  encryption_key: 00ff\n", "key must be 32 bytes"},
		{"Garbage Key", "security:\n  encryption_key: \"%%%\"\n", "neither hex nor base64"},
		{"Bad PII Pattern", "security:\n  pii_patterns: [\"(\"]\n", "pii_patterns[0]"},
		{"Fallback Without Active", "security:\n  fallback_keys: [" + hexKey + "]\n", "fallback_keys"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.yaml), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestKeys_Base64AndRotation(t *testing.T) {
	sec := config.SecurityConfig{
		EncryptionKey: strings.Repeat("A", 43) + "=",
		FallbackKeys:  []string{hexKey},
	}
	active, fallback, err := sec.Keys()
	require.NoError(t, err)
	assert.Len(t, active, 32)
	require.Len(t, fallback, 1)
	assert.Equal(t, byte(0x1f), fallback[0][31])
}
