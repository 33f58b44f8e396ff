package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Duplex/internal/domain"
)

// chdir is a stand-in for testing.T.Chdir, which requires Go 1.24+.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "dev")
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "release", cfg.Mode)
	require.Equal(t, 8080, cfg.Port)
	require.Empty(t, cfg.StunServers)
	require.Equal(t, time.Second, cfg.RetryInterval)
	require.Equal(t, "info", cfg.LogLevel)
	require.False(t, cfg.Capture)
	require.Equal(t, domain.DefaultDeviceID, cfg.PlaybackDeviceID)
	require.Equal(t, domain.DefaultDeviceID, cfg.CaptureDeviceID)
	require.Equal(t, domain.DefaultDeviceID, cfg.CameraDeviceID)
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("CONFIG_ENV", "dev")
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	yaml := `
mode: debug
port: 9000
stun_servers:
  - stun:stun.example.org:3478
signaling_url: wss://signal.example.org/ws
retry_interval: 250ms
log_level: debug
capture: true
playback_device_id: spk-7
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.dev.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.Mode)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, []string{"stun:stun.example.org:3478"}, cfg.StunServers)
	require.Equal(t, "wss://signal.example.org/ws", cfg.SignalingURL)
	require.Equal(t, 250*time.Millisecond, cfg.RetryInterval)
	require.True(t, cfg.Capture)
	require.Equal(t, "spk-7", cfg.PlaybackDeviceID)
	// Unset ids keep the default sentinel.
	require.Equal(t, domain.DefaultDeviceID, cfg.CameraDeviceID)
}

func TestSavedDeviceIDs(t *testing.T) {
	cfg := &Config{
		PlaybackDeviceID: "spk-7",
		CaptureDeviceID:  domain.DefaultDeviceID,
		CameraDeviceID:   "cam-1",
	}
	saved := NewSavedDeviceIDs(cfg)

	require.Equal(t, "spk-7", saved.Playback.Get())
	require.Equal(t, domain.DefaultDeviceID, saved.Capture.Get())
	require.Equal(t, "cam-1", saved.Camera.Get())

	ch, cancel := saved.Playback.Changes()
	defer cancel()
	saved.Playback.Set("spk-8")
	require.Equal(t, "spk-8", <-ch)
}
