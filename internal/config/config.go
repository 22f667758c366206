package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 服务端与客户端共享配置
type Config struct {
	Server ServerConfig `yaml:"server"`
	Redis  RedisConfig  `yaml:"redis"`
	Game   GameConfig   `yaml:"game"`
	Client ClientConfig `yaml:"client"`
}

// ServerConfig HTTP/WebSocket 服务器配置
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GameConfig 游戏配置
type GameConfig struct {
	TickInterval int `yaml:"tick_interval"` // snake 推进间隔（毫秒）
	VoteCountdown int `yaml:"vote_countdown"` // 投票倒计时（毫秒）
	RoomTimeout  int `yaml:"room_timeout"`  // 空房间回收超时（分钟）
	MaxPlayers   int `yaml:"max_players"`   // 默认房间容量
}

// ClientConfig 终端客户端配置
type ClientConfig struct {
	ServerURL       string `yaml:"server_url"`       // WebSocket 地址
	APIBase         string `yaml:"api_base"`         // HTTP API 基地址
	RefreshInterval int    `yaml:"refresh_interval"` // 大厅房间列表刷新间隔（毫秒）
}

// TickDuration 返回游戏推进间隔
func (c *GameConfig) TickDuration() time.Duration {
	return time.Duration(c.TickInterval) * time.Millisecond
}

// VoteCountdownDuration 返回投票倒计时时长
func (c *GameConfig) VoteCountdownDuration() time.Duration {
	return time.Duration(c.VoteCountdown) * time.Millisecond
}

// RoomTimeoutDuration 返回空房间回收超时
func (c *GameConfig) RoomTimeoutDuration() time.Duration {
	return time.Duration(c.RoomTimeout) * time.Minute
}

// RefreshDuration 返回大厅刷新间隔
func (c *ClientConfig) RefreshDuration() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Millisecond
}

// Load 加载配置文件
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv 按 MYWEB_CONFIG 指定的路径加载，未设置时返回默认配置
func LoadFromEnv() (*Config, error) {
	if path := os.Getenv("MYWEB_CONFIG"); path != "" {
		return Load(path)
	}
	return Default(), nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 1780
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Game.TickInterval == 0 {
		cfg.Game.TickInterval = 500
	}
	if cfg.Game.VoteCountdown == 0 {
		cfg.Game.VoteCountdown = 400
	}
	if cfg.Game.RoomTimeout == 0 {
		cfg.Game.RoomTimeout = 10
	}
	if cfg.Game.MaxPlayers == 0 {
		cfg.Game.MaxPlayers = 4
	}
	if cfg.Client.ServerURL == "" {
		cfg.Client.ServerURL = "ws://localhost:1780/ws"
	}
	if cfg.Client.APIBase == "" {
		cfg.Client.APIBase = "http://localhost:1780/api"
	}
	if cfg.Client.RefreshInterval == 0 {
		cfg.Client.RefreshInterval = 5000
	}
}

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
