package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stagesync/stagesync/internal/gateway"
	"github.com/stagesync/stagesync/internal/live"
)

// Config is the engine's YAML configuration. Every field has a sensible
// default so the binary runs without a config file at all.
type Config struct {
	Engine struct {
		TickIntervalMs      int     `yaml:"tick_interval_ms"`
		WarningThresholdsMs []int64 `yaml:"warning_thresholds_ms"`
		CacheTTLSeconds     int     `yaml:"cache_ttl_seconds"`
	} `yaml:"engine"`

	Websocket struct {
		WriteTimeoutMs int `yaml:"write_timeout_ms"`
		ReadTimeoutMs  int `yaml:"read_timeout_ms"`
		PingIntervalMs int `yaml:"ping_interval_ms"`
		SendBufferSize int `yaml:"send_buffer_size"`
	} `yaml:"websocket"`

	Platform struct {
		BaseURL      string `yaml:"base_url"`
		ServiceToken string `yaml:"service_token"`
	} `yaml:"platform"`
}

func loadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

func (c *Config) schedulerConfig() live.SchedulerConfig {
	cfg := live.DefaultSchedulerConfig()
	if c.Engine.TickIntervalMs > 0 {
		cfg.TickInterval = time.Duration(c.Engine.TickIntervalMs) * time.Millisecond
	}
	if len(c.Engine.WarningThresholdsMs) > 0 {
		cfg.WarningThresholdsMs = c.Engine.WarningThresholdsMs
	}
	return cfg
}

func (c *Config) connectionConfig() gateway.ConnectionConfig {
	cfg := gateway.DefaultConnectionConfig()
	if c.Websocket.WriteTimeoutMs > 0 {
		cfg.WriteTimeout = time.Duration(c.Websocket.WriteTimeoutMs) * time.Millisecond
	}
	if c.Websocket.ReadTimeoutMs > 0 {
		cfg.ReadTimeout = time.Duration(c.Websocket.ReadTimeoutMs) * time.Millisecond
	}
	if c.Websocket.PingIntervalMs > 0 {
		cfg.PingInterval = time.Duration(c.Websocket.PingIntervalMs) * time.Millisecond
	}
	if c.Websocket.SendBufferSize > 0 {
		cfg.SendBufferSize = c.Websocket.SendBufferSize
	}
	return cfg
}

func (c *Config) cacheTTL() time.Duration {
	if c.Engine.CacheTTLSeconds > 0 {
		return time.Duration(c.Engine.CacheTTLSeconds) * time.Second
	}
	return 24 * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
