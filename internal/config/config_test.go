package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	t.Parallel()

	content := `
server:
  host: "127.0.0.1"
  port: 8080

redis:
  addr: "redis:6379"
  password: "secret"
  db: 1

game:
  tick_interval: 300
  vote_countdown: 250
  room_timeout: 15
  max_players: 8

client:
  server_url: "ws://play.example.com/ws"
  api_base: "https://play.example.com/api"
  refresh_interval: 3000
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(content), 0o600)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)
	assert.Equal(t, 300*time.Millisecond, cfg.Game.TickDuration())
	assert.Equal(t, 250*time.Millisecond, cfg.Game.VoteCountdownDuration())
	assert.Equal(t, 15*time.Minute, cfg.Game.RoomTimeoutDuration())
	assert.Equal(t, 8, cfg.Game.MaxPlayers)
	assert.Equal(t, "ws://play.example.com/ws", cfg.Client.ServerURL)
	assert.Equal(t, 3*time.Second, cfg.Client.RefreshDuration())
}

func TestLoad_DefaultsApplied(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte("server:\n  port: 9000\n"), 0o600)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 500, cfg.Game.TickInterval)
	assert.Equal(t, 4, cfg.Game.MaxPlayers)
	assert.Equal(t, 5000, cfg.Client.RefreshInterval)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	err := os.WriteFile(configPath, []byte("server: [not: valid"), 0o600)
	require.NoError(t, err)

	_, err = Load(configPath)
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, 1780, cfg.Server.Port)
	assert.Equal(t, "ws://localhost:1780/ws", cfg.Client.ServerURL)
}
