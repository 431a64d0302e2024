package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/kusogate/internal/backend"
	"github.com/dmitrijs2005/kusogate/internal/logging"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })
	os.Args = append([]string{"testbin"}, args...)
}

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, ":8080", c.ListenAddr)
	assert.True(t, c.Inbound)
	assert.Equal(t, logging.FormatJSON, c.LogFormat)
	assert.False(t, c.Debug)
	assert.Equal(t, backend.StoreDynamoDB, c.Backend.Store)
	assert.Equal(t, backend.SealerKMS, c.Backend.Sealer)
}

func TestLoadConfig_NoArgs(t *testing.T) {
	withArgs(t)
	assert.Empty(t, cmp.Diff(defaults(), LoadConfig()))
}

func TestParseJson(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"listen_addr":   "127.0.0.1:9999",
		"log_format":    "text",
		"store":         "redis",
		"redis_addr":    "redis:6379",
		"reap_interval": "45s",
	})
	withArgs(t, "-c", path)

	cfg := defaults()
	parseJson(cfg)

	want := defaults()
	want.ListenAddr = "127.0.0.1:9999"
	want.LogFormat = logging.FormatText
	want.Backend.Store = backend.StoreRedis
	want.Backend.RedisAddr = "redis:6379"
	want.Backend.ReapInterval = 45 * time.Second

	assert.Empty(t, cmp.Diff(want, cfg))
}

func TestParseJson_Panics(t *testing.T) {
	withArgs(t, "-config", filepath.Join(t.TempDir(), "missing.json"))
	assert.Panics(t, func() { parseJson(defaults()) })

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	withArgs(t, "-config", bad)
	assert.Panics(t, func() { parseJson(defaults()) })
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expected    func(c *Config)
		expectPanic bool
	}{
		{
			name: "own and backend flags",
			args: []string{"-a", ":9090", "-l", "zap", "-v", "-inbound=false", "-store", "memory", "-sealer", "age"},
			expected: func(c *Config) {
				c.ListenAddr = ":9090"
				c.LogFormat = logging.FormatZap
				c.Debug = true
				c.Inbound = false
				c.Backend.Store = backend.StoreMemory
				c.Backend.Sealer = backend.SealerAge
			},
		},
		{
			name:     "unknown flags are ignored",
			args:     []string{"-x", "1", "-a", ":7000"},
			expected: func(c *Config) { c.ListenAddr = ":7000" },
		},
		{
			name:        "bad value panics",
			args:        []string{"-redis-db", "zero"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withArgs(t, tt.args...)
			cfg := defaults()

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(cfg) })
				return
			}

			require.NotPanics(t, func() { parseFlags(cfg) })
			want := defaults()
			tt.expected(want)
			assert.Empty(t, cmp.Diff(want, cfg))
		})
	}
}

func TestLoadConfig_FlagsOverrideJson(t *testing.T) {
	path := writeTempJSON(t, map[string]any{"listen_addr": ":1111", "key_id": "alias/from-file"})
	withArgs(t, "-c", path, "-a", ":2222")

	cfg := LoadConfig()
	assert.Equal(t, ":2222", cfg.ListenAddr)
	assert.Equal(t, "alias/from-file", cfg.Backend.KeyID)
}
