package daemon

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/openagora/agora/internal/config"
	"github.com/openagora/agora/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestDaemon(t *testing.T) (*Daemon, *logger.Logger) {
	t.Helper()
	tmpDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = tmpDir
	cfg.Database.Path = filepath.Join(tmpDir, "agora.db")
	cfg.Gateway.Port = 38321
	cfg.Retention = config.RetentionConfig{Enabled: true, Schedule: "0 3 * * *", MaxAge: 30}

	log, err := logger.New(logger.Config{Level: "info", Console: false})
	require.NoError(t, err)

	d, err := New(cfg, log)
	require.NoError(t, err)

	return d, log
}

func TestNew(t *testing.T) {
	d, log := createTestDaemon(t)
	defer log.Close()
	defer d.Stop()

	assert.NotNil(t, d.store)
	assert.NotNil(t, d.registry)
	assert.NotNil(t, d.hub)
	assert.NotNil(t, d.runner)
	assert.NotNil(t, d.controller)
	assert.NotNil(t, d.gatewayServer)
	assert.NotNil(t, d.retentionJob)
}

func TestDaemonStartStop(t *testing.T) {
	d, log := createTestDaemon(t)
	defer log.Close()

	require.NoError(t, d.Start())
	assert.Error(t, d.Start(), "second start should be rejected")

	time.Sleep(50 * time.Millisecond)
	assert.Greater(t, d.Uptime(), time.Duration(0))

	require.NoError(t, d.Stop())
	assert.Equal(t, time.Duration(0), d.Uptime())

	// Stopping an already stopped daemon is a no-op.
	require.NoError(t, d.Stop())
}
