// internal/config/config.go

// Package config 加载YAML配置文件，缺省值覆盖所有字段，
// 没有配置文件也能以默认参数启动。
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"backend/internal/logger"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type HardwareConfig struct {
	IP         string `yaml:"ip"`
	Port       int    `yaml:"port"`
	Addressing string `yaml:"addressing"`  // grid / legacy
	DoubleSend bool   `yaml:"double_send"` // 状态报文连发两次
}

type AudioConfig struct {
	StartTonePath string   `yaml:"start_tone"`
	EndTonePath   string   `yaml:"end_tone"`
	PreviewDir    string   `yaml:"preview_dir"`
	TempDir       string   `yaml:"temp_dir"`
	FFmpegPath    string   `yaml:"ffmpeg_path"`
	FFprobePath   string   `yaml:"ffprobe_path"`
	FFplayPath    string   `yaml:"ffplay_path"`
	TTSCommand    string   `yaml:"tts_command"`
	TTSArgs       []string `yaml:"tts_args"`
	Language      string   `yaml:"language"`
	NormalizeDBFS float64  `yaml:"normalize_dbfs"`
}

type PreviewConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
	Workers    int `yaml:"workers"`
}

type SecurityConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Allowlist []string `yaml:"allowlist"`
}

type BroadcastConfig struct {
	RestoreStates bool `yaml:"restore_states"`
	QueueSize     int  `yaml:"queue_size"`
}

type MonitorConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	Audio     AudioConfig     `yaml:"audio"`
	Preview   PreviewConfig   `yaml:"preview"`
	Security  SecurityConfig  `yaml:"security"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Database  DatabaseConfig  `yaml:"database"`
	LogLevel  string          `yaml:"log_level"`
}

// Default 缺省配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Hardware: HardwareConfig{
			IP:         "192.168.1.200",
			Port:       5000,
			Addressing: "grid",
			DoubleSend: true,
		},
		Audio: AudioConfig{
			StartTonePath: "assets/start_tone.mp3",
			EndTonePath:   "assets/end_tone.mp3",
			PreviewDir:    "previews",
			TempDir:       os.TempDir(),
			TTSCommand:    "edge-tts",
			TTSArgs:       []string{"--voice", "zh-CN-XiaoxiaoNeural", "--text", "{text}", "--write-media", "{out}"},
			Language:      "zh-CN",
		},
		Preview: PreviewConfig{
			TTLMinutes: 10,
			Workers:    4,
		},
		Security: SecurityConfig{
			Enabled: false,
		},
		Broadcast: BroadcastConfig{
			RestoreStates: true,
			QueueSize:     64,
		},
		Monitor: MonitorConfig{
			IntervalSeconds: 30,
		},
		Database: DatabaseConfig{
			Path: "broadcast.db",
		},
		LogLevel: "info",
	}
}

// Load 读取配置文件并覆盖缺省值。path为空或文件不存在时
// 返回缺省配置。
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("配置文件不存在，使用缺省配置: %s", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("配置文件读取失败: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("配置文件解析失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 启动前的配置检查
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("非法服务端口: %d", c.Server.Port)
	}
	if c.Hardware.Port <= 0 || c.Hardware.Port > 65535 {
		return fmt.Errorf("非法硬件端口: %d", c.Hardware.Port)
	}
	switch c.Hardware.Addressing {
	case "", "grid", "legacy":
	default:
		return fmt.Errorf("未知的寻址模式: %s", c.Hardware.Addressing)
	}
	return nil
}
