package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelbrown/turtle/internal/sandbox"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Sandbox.Timeout)
	assert.Equal(t, "goroutine", cfg.Sandbox.Isolation)
	assert.Equal(t, 64<<10, cfg.Sandbox.MaxSourceBytes)
	assert.Equal(t, 200.0, cfg.Canvas.Width)
	assert.Equal(t, 1.0, cfg.Canvas.Scale)
	assert.Equal(t, 33*time.Millisecond, cfg.Animation.FrameInterval)
	assert.Equal(t, filepath.Join(dir, ".turtle", "turtle.db"), cfg.Storage.DBPath)
	assert.Equal(t, sandbox.DefaultPolicy(), cfg.Sandbox.Policy())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turtle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
  admin_token: ${TURTLE_TEST_ADMIN}
sandbox:
  timeout: 2s
  isolation: process
canvas:
  width: 400
  height: 300
  scale: 2
cache:
  redis_addr: localhost:6379
`), 0o644))
	t.Setenv("TURTLE_TEST_ADMIN", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Server.AdminToken)
	assert.Equal(t, 2*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, sandbox.IsolationProcess, cfg.Sandbox.Policy().Isolation)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)

	rc := cfg.Canvas.Render(true)
	assert.Equal(t, 400.0, rc.Width)
	assert.Equal(t, 300.0, rc.Height)
	assert.True(t, rc.DrawTurtle)
	w, h := rc.PixelSize()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	t.Setenv("TURTLE_SERVER_PORT", "7070")
	t.Setenv("TURTLE_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
