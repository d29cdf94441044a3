//go:build !darwin

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackendRoundTrip(t *testing.T) {
	b := fileBackend{path: filepath.Join(t.TempDir(), "llmcore", "config.json")}

	_, ok, err := b.Lookup("server.port")
	require.NoError(t, err)
	assert.False(t, ok, "missing file reads as empty")

	require.NoError(t, setKey(b, "server.port", "4100"))
	require.NoError(t, setKey(b, "engine.default_model", "MERCURY"))

	cfg, err := loadWith(b, mockKeychain{})
	require.NoError(t, err)
	assert.Equal(t, 4100, cfg.Server.Port)
	assert.Equal(t, "MERCURY", cfg.Engine.DefaultModel)

	info, err := os.Stat(b.path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, b.Remove("server.port"))
	require.NoError(t, b.Remove("server.port"))
	_, ok, err = b.Lookup("server.port")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileBackendCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := loadWith(fileBackend{path: path}, mockKeychain{})
	assert.Error(t, err)
}

func TestSecretsFile(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	_, err := keychainLookup(secretService, "OPENAI_API_KEY")
	assert.Error(t, err)

	require.NoError(t, StoreSecret("OPENAI_API_KEY", "sk-1"))
	require.NoError(t, StoreSecret("api_token", "tok"))

	v, err := keychainReader{}.Get(secretService, "OPENAI_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "sk-1", v)
	v, err = keychainReader{}.Get(secretService, "api_token")
	require.NoError(t, err)
	assert.Equal(t, "tok", v)
}
