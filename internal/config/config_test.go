package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig writes a config file that keeps every path inside the test's
// temporary directory.
func testConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	content := `
server:
  data_dir: ` + dir + `/data
  snapshot_dir: ` + dir + `/data/snapshots
log:
  file: ` + dir + `/logs/kiosk.log
db:
  file: ` + dir + `/kiosk.db
` + extra
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(testConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 15, cfg.Camera.FPS)
	assert.Equal(t, 0.8, cfg.Face.DetProbThreshold)
	assert.Equal(t, "thumbs_up", cfg.Gesture.PresenceLabel)
	assert.Equal(t, "open_palm", cfg.Gesture.BreakLabel)
	assert.Equal(t, 5, cfg.Cooldowns.Recognition)
	assert.Equal(t, 30, cfg.Cooldowns.Attendance)
	assert.Equal(t, 45, cfg.Cooldowns.GesturePrompt)
	assert.False(t, cfg.Geo.Enabled)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "presence-kiosk/attendance", cfg.MQTT.Topic)
	assert.Equal(t, 30, cfg.Cleanup.RetentionDays)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(testConfig(t, `
camera:
  device_id: 2
  fps: 10
cooldowns:
  attendance: 60
gesture:
  presence_label: peace_sign
`))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Camera.DeviceID)
	assert.Equal(t, 10, cfg.Camera.FPS)
	assert.Equal(t, 60, cfg.Cooldowns.Attendance)
	assert.Equal(t, "peace_sign", cfg.Gesture.PresenceLabel)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5, cfg.Cooldowns.Recognition)
}

func TestLoadCreatesDirectories(t *testing.T) {
	path := testConfig(t, "")
	cfg, err := Load(path)
	require.NoError(t, err)

	for _, dir := range []string{cfg.Server.DataDir, cfg.Server.SnapshotDir, filepath.Dir(cfg.Log.File)} {
		info, err := os.Stat(dir)
		require.NoError(t, err, "expected directory %s", dir)
		assert.True(t, info.IsDir())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PRESENCE_KIOSK_SERVER_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("PRESENCE_KIOSK_SERVER_SNAPSHOT_DIR", filepath.Join(dir, "data", "snapshots"))
	t.Setenv("PRESENCE_KIOSK_LOG_FILE", filepath.Join(dir, "logs", "kiosk.log"))
	t.Setenv("PRESENCE_KIOSK_DB_FILE", filepath.Join(dir, "kiosk.db"))

	cfg, err := Load(filepath.Join(dir, "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.Server.DataDir)
}
