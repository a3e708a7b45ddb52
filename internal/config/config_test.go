package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	original := &Config{
		Servers: map[string]*ServerConfig{
			"go": {
				Command:     "gopls",
				Args:        []string{"serve"},
				SettleDelay: 250 * time.Millisecond,
				Sections: map[string]interface{}{
					"gopls": map[string]interface{}{"usePlaceholders": true},
				},
			},
		},
	}

	require.NoError(t, SaveConfig(original, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Contains(t, loaded.Servers, "go")
	assert.Equal(t, "gopls", loaded.Servers["go"].Command)
	assert.Equal(t, []string{"serve"}, loaded.Servers["go"].Args)
	assert.Equal(t, 250*time.Millisecond, loaded.Servers["go"].SettleDelay)
	assert.Contains(t, loaded.Servers["go"].Sections, "gopls")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfigRejectsMissingCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("servers:\n  go:\n    args: [serve]\n"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command is required")
}

func TestTimeoutDefaults(t *testing.T) {
	s := &ServerConfig{}
	assert.Equal(t, DefaultRequestTimeout, s.Timeout())

	s.RequestTimeout = 5 * time.Second
	assert.Equal(t, 5*time.Second, s.Timeout())
}

func TestGetDefaultConfigCoversCommonServers(t *testing.T) {
	cfg := GetDefaultConfig()
	for _, lang := range []string{"go", "python", "typescript", "rust"} {
		require.Contains(t, cfg.Servers, lang)
		assert.NotEmpty(t, cfg.Servers[lang].Command)
	}
}
