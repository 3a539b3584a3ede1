package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "grid", cfg.Hardware.Addressing)
	assert.True(t, cfg.Hardware.DoubleSend)
	assert.Equal(t, 10, cfg.Preview.TTLMinutes)
	assert.Equal(t, 4, cfg.Preview.Workers)
	assert.True(t, cfg.Broadcast.RestoreStates)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load("/no/such/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
hardware:
  ip: 10.0.0.5
  port: 6000
  addressing: legacy
  double_send: false
broadcast:
  queue_size: 8
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "10.0.0.5", cfg.Hardware.IP)
	assert.Equal(t, 6000, cfg.Hardware.Port)
	assert.Equal(t, "legacy", cfg.Hardware.Addressing)
	assert.False(t, cfg.Hardware.DoubleSend)
	assert.Equal(t, 8, cfg.Broadcast.QueueSize)
	assert.Equal(t, "debug", cfg.LogLevel)

	// 未覆盖的字段保持缺省值
	assert.Equal(t, 10, cfg.Preview.TTLMinutes)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"非法服务端口", func(c *Config) { c.Server.Port = -1 }},
		{"非法硬件端口", func(c *Config) { c.Hardware.Port = 70000 }},
		{"未知寻址模式", func(c *Config) { c.Hardware.Addressing = "v3" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
