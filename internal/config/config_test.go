package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T, n int) string {
	t.Helper()

	key := make([]byte, n)
	for i := range key {
		key[i] = byte(i)
	}

	return base64.StdEncoding.EncodeToString(key)
}

// validEnv returns environment overrides that satisfy Validate on top of
// the defaults.
func validEnv(t *testing.T) EnvOverrides {
	t.Helper()

	return EnvOverrides{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		HashKey:      testKey(t, 32),
		BlockKey:     testKey(t, 32),
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "aulalink.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "aulalink.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Session.SecureCookies)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
listen_addr = ":9999"

[google]
client_id = "id"
client_secret = "secret"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "aulalink.db", cfg.DBPath)
	assert.Equal(t, "id", cfg.Google.ClientID)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
listen_addr = ":9999"
databse_path = "typo.db"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "databse_path")
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestResolveOverrideChain(t *testing.T) {
	path := writeConfig(t, `
listen_addr = ":7000"
database_path = "from-file.db"
log_level = "warn"
`)

	env := validEnv(t)
	env.ConfigPath = path
	env.DBPath = "from-env.db"

	// CLI beats env beats file.
	cfg, err := Resolve(env, CLIOverrides{DBPath: "from-cli.db"})
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, "from-cli.db", cfg.DBPath)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "client-id", cfg.Google.ClientID)
}

func TestResolveInsecureHTTP(t *testing.T) {
	env := validEnv(t)
	env.InsecureHTTP = true

	cfg, err := Resolve(env, CLIOverrides{})
	require.NoError(t, err)
	assert.False(t, cfg.Session.SecureCookies)
}

func TestValidateRejectsMissingSecrets(t *testing.T) {
	cfg := DefaultConfig()

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "google.client_id")
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	env := validEnv(t)
	env.LogLevel = "chatty"

	_, err := Resolve(env, CLIOverrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestSessionKeyDecoding(t *testing.T) {
	s := Session{HashKey: testKey(t, 32), BlockKey: testKey(t, 32)}

	hashKey, err := s.DecodedHashKey()
	require.NoError(t, err)
	assert.Len(t, hashKey, 32)

	blockKey, err := s.DecodedBlockKey()
	require.NoError(t, err)
	assert.Len(t, blockKey, 32)

	// Too-short keys and non-base64 values are rejected.
	_, err = Session{HashKey: testKey(t, 16)}.DecodedHashKey()
	assert.Error(t, err)

	_, err = Session{BlockKey: testKey(t, 16)}.DecodedBlockKey()
	assert.Error(t, err)

	_, err = Session{HashKey: "not base64!"}.DecodedHashKey()
	assert.Error(t, err)
}
