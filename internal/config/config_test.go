package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.NotEmpty(t, cfg.Server.CORSOrigins)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)
	assert.Equal(t, DefaultRotationWindowDays, cfg.Rotation.WindowDays)
	assert.Equal(t, 4, cfg.Rotation.Part1MinQuestions)
	assert.Equal(t, 6, cfg.Rotation.Part1MaxQuestions)
	assert.Equal(t, 5, cfg.Rotation.Part3MinQuestions)
	assert.Equal(t, 7, cfg.Rotation.Part3MaxQuestions)
	assert.Equal(t, "speaking-backend", cfg.OpenTelemetry.ServiceName)
	assert.Equal(t, 1.0, cfg.OpenTelemetry.SamplingRate)
}

func TestStoreTimeoutDefaultsWhenUnset(t *testing.T) {
	var r RotationConfig
	assert.Equal(t, DefaultStoreTimeout, r.StoreTimeout())

	r.StoreTimeoutSeconds = 10
	assert.Equal(t, 10*time.Second, r.StoreTimeout())
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: "9090"
  session_secret: "test-secret"
rotation:
  window_days: 30
  part1_min_questions: 3
database:
  url: "postgres://localhost/speak_test"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("SPEAK_CONFIG_FILE", path)

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "test-secret", cfg.Server.SessionSecret)
	assert.Equal(t, 30, cfg.Rotation.WindowDays)
	assert.Equal(t, 3, cfg.Rotation.Part1MinQuestions)
	// Unset values still receive defaults
	assert.Equal(t, 6, cfg.Rotation.Part1MaxQuestions)
	assert.Equal(t, "postgres://localhost/speak_test", cfg.Database.URL)
}

func TestEnvOverridesBeatFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o600))
	t.Setenv("SPEAK_CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("ROTATION_WINDOW_DAYS", "14")
	t.Setenv("DATABASE_URL", "postgres://env-host/speak")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, 14, cfg.Rotation.WindowDays)
	assert.Equal(t, "postgres://env-host/speak", cfg.Database.URL)
}

func TestMissingConfigFileFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SPEAK_CONFIG_FILE", "")
	t.Chdir(dir)

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
}
