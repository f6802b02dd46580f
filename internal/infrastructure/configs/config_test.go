package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwt_secret: s3cret\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.HTTP.Host)
	assert.Equal(t, uint16(5000), cfg.HTTP.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "memory", cfg.Identity.Driver)
	assert.Equal(t, "token", cfg.Auth.CookieName)
	assert.Equal(t, 64, cfg.WS.SendBufferSize)
	assert.Equal(t, 25*time.Second, cfg.WS.PingInterval)
	assert.Equal(t, "zap", cfg.Logger.Logger)
}

func TestLoad_ReadsFileValues(t *testing.T) {
	path := writeConfig(t, `
http:
  port: 9000
  read_timeout: 3s
store:
  driver: sqlite
  sqlite_path: /tmp/x.db
identity:
  seed:
    alice: Raven
    bob: Ghost
auth:
  jwt_secret: s3cret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint16(9000), cfg.HTTP.Port)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/x.db", cfg.Store.SQLitePath)
	assert.Equal(t, map[string]string{"alice": "Raven", "bob": "Ghost"}, cfg.Identity.Seed)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwt_secret: from-file\n")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("PORT", "7001")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "mongo", cfg.Store.Driver)
	assert.Equal(t, uint16(7001), cfg.HTTP.Port)
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	_, err := Load(writeConfig(t, "store:\n  driver: postgres\nauth:\n  jwt_secret: x\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "store:\n  driver: memory\n"))
	assert.Error(t, err)
}

func TestDetermineConfigPath(t *testing.T) {
	assert.Equal(t, "/custom.yaml", DetermineConfigPath([]string{"--config", "/custom.yaml"}))

	t.Setenv("SILENTROOM_CONFIG", "/from-env.yaml")
	assert.Equal(t, "/from-env.yaml", DetermineConfigPath(nil))
}
