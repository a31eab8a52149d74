package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatch_NoConfigFile(t *testing.T) {
	isolate(t)

	err := Watch("", zap.NewNop(), func(*Config) {})
	assert.ErrorIs(t, err, ErrNoConfigFile)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  log_level: info\n"), 0o644))

	changes := make(chan *Config, 8)
	require.NoError(t, Watch(path, zap.NewNop(), func(cfg *Config) { changes <- cfg }))

	// An invalid edit is skipped
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 70000\n"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("app:\n  log_level: debug\n"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			require.Equal(t, 8080, cfg.Server.Port, "invalid port must never be delivered")
			if cfg.App.LogLevel == "debug" {
				return
			}
		case <-deadline:
			t.Fatal("configuration change was not delivered")
		}
	}
}
