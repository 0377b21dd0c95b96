package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
server:
  port: 8080
  log_level: debug
history:
  limit: 50
cors:
  enabled: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ".", cfg.Server.RootDir)
	assert.Equal(t, 50, cfg.History.Limit)
	assert.True(t, cfg.CORS.Enabled)
	assert.Equal(t, "*", cfg.CORS.AllowOrigins)
	assert.Equal(t, ".json", cfg.Watch.Extension)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"port out of range", "server:\n  port: 70000\n"},
		{"negative limit", "history:\n  limit: -1\n"},
		{"unknown level", "server:\n  log_level: loud\n"},
		{"extension without dot", "watch:\n  extension: json\n"},
		{"tls without cert", "tls:\n  enabled: true\n  cert_file: \"\"\n"},
		{"malformed yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, found, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, Default(), cfg)
}

func TestSaveDefaultConfigRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, SaveDefaultConfig(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	require.NoError(t, Default().Validate())
}
