package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AWG       InstrumentConfig `yaml:"awg"`
	Scope     InstrumentConfig `yaml:"scope"`
	Redis     RedisConfig      `yaml:"redis"`
	Log       LogConfig        `yaml:"log"`
	Monitor   MonitorConfig    `yaml:"monitor"`
	Simulator SimulatorConfig  `yaml:"simulator"`
}

// InstrumentConfig 单台仪器的连接参数。地址不带端口时使用仪器默认端口。
type InstrumentConfig struct {
	Address string        `yaml:"address"`
	Timeout time.Duration `yaml:"timeout"`
}

type RedisConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	PoolSize     int    `yaml:"pool_size"`
	Channel      string `yaml:"channel"`
	HistoryLimit int64  `yaml:"history_limit"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitorConfig struct {
	Enabled     bool `yaml:"enabled"`
	MetricsPort int  `yaml:"metrics_port"`
}

type SimulatorConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	MaxConnections int           `yaml:"max_connections"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	Identity       string        `yaml:"identity"`
}

// LoadConfig 加载配置文件，文件中未出现的字段保留默认值
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return config, nil
}

// GetDefaultConfig 返回默认配置
func GetDefaultConfig() *Config {
	return &Config{
		AWG: InstrumentConfig{
			Address: "192.168.1.14",
			Timeout: 5 * time.Second,
		},
		Scope: InstrumentConfig{
			Address: "192.168.1.16",
			Timeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:      false,
			Addr:         "localhost:6379",
			Password:     "",
			DB:           0,
			PoolSize:     10,
			Channel:      "instrument_captures",
			HistoryLimit: 1000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Monitor: MonitorConfig{
			Enabled:     false,
			MetricsPort: 9090,
		},
		Simulator: SimulatorConfig{
			Host:           "127.0.0.1",
			Port:           5555,
			MaxConnections: 16,
			ReadTimeout:    5 * time.Second,
		},
	}
}
