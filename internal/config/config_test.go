package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("valid configuration", func(t *testing.T) {
		path := writeConfig(t, `
server:
  host: "0.0.0.0"
  port: "6000"
  admin_port: "6001"
transfer:
  mac_key: "secret"
  session_ttl: 2m
storage:
  backend: "fs"
  dir: "/tmp/artifacts"
database:
  url: "postgres://localhost/parity"
`)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, "6000", cfg.Server.Port)
		assert.Equal(t, "0.0.0.0:6000", cfg.ServerAddr())
		assert.Equal(t, "0.0.0.0:6001", cfg.AdminAddr())
		assert.Equal(t, "secret", cfg.Transfer.MACKey)
		assert.Equal(t, 2*time.Minute, cfg.Transfer.SessionTTL)
		assert.Equal(t, "/tmp/artifacts", cfg.Storage.Dir)
		assert.Equal(t, "postgres://localhost/parity", cfg.Database.URL)
	})

	t.Run("defaults applied", func(t *testing.T) {
		path := writeConfig(t, `
transfer:
  mac_key: "secret"
`)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, 1024, cfg.Transfer.ChunkSize)
		assert.Equal(t, 10*time.Minute, cfg.Transfer.SessionTTL)
		assert.Equal(t, "fs", cfg.Storage.Backend)
		assert.Equal(t, "parity-ml", cfg.Telemetry.ServiceName)
		assert.False(t, cfg.TLS.Enabled())
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := writeConfig(t, `
transfer:
  mac_key: "from-file"
`)
		t.Setenv("PARITY_TRANSFER_MAC_KEY", "from-env")

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Transfer.MACKey)
	})

	t.Run("missing mac key", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: "6000"
`)

		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("unknown storage backend", func(t *testing.T) {
		path := writeConfig(t, `
transfer:
  mac_key: "secret"
storage:
  backend: "s3"
`)

		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("unknown database driver", func(t *testing.T) {
		path := writeConfig(t, `
transfer:
  mac_key: "secret"
database:
  driver: "mysql"
`)

		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("heartbeat settings", func(t *testing.T) {
		path := writeConfig(t, `
transfer:
  mac_key: "secret"
database:
  driver: "sqlite"
  url: "file:catalog.db"
heartbeat:
  url: "http://monitor.local/beat"
  interval: 10s
`)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "http://monitor.local/beat", cfg.Heartbeat.URL)
		assert.Equal(t, 10*time.Second, cfg.Heartbeat.Interval)
		assert.Equal(t, 3, cfg.Heartbeat.MaxRetries)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
