package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-monopoly/board"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, board.Large, cfg.Board)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Minute, cfg.Client.ConfirmTimeout)
	assert.Equal(t, int32(6), cfg.Client.TokenDecimals)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
debug: true
board:
  width: 5
  height: 5
redis:
  addr: redis:6379
  db: 2
client:
  roll_delay: 250ms
  escrow_address: "0xabc"
`), 0o600))

	t.Setenv("REDIS_ADDR", "10.0.0.1:6379")
	t.Setenv("REDIS_DB", "4")
	t.Setenv("MYSQL_DSN", "root@tcp(db:3306)/monopoly")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, board.Classic, cfg.Board)
	assert.Equal(t, "10.0.0.1:6379", cfg.Redis.Addr)
	assert.Equal(t, 4, cfg.Redis.DB)
	assert.Equal(t, "root@tcp(db:3306)/monopoly", cfg.MySQL.DSN)
	assert.Equal(t, 250*time.Millisecond, cfg.Client.RollDelay)
	assert.Equal(t, "0xabc", cfg.Client.EscrowAddress)
	// 未出现在文件里的字段保留默认值
	assert.Equal(t, "http://localhost:8080", cfg.Client.APIBaseURL)
}

func TestLoadRejectsBadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("board:\n  width: 1\n  height: 5\n"), 0o600))
	_, err := Load(path)
	assert.ErrorIs(t, err, board.ErrConfiguration)

	t.Setenv("REDIS_DB", "one")
	_, err = Load("")
	assert.Error(t, err)
}
