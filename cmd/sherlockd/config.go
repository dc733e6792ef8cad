package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds sherlockd's runtime configuration. Grounded on
// adred-codev-ws_poc/go-server-3/internal/config/config.go's
// viper-backed Load pattern.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the HTTP listener that serves the demo
// Stream's HTTPBridge endpoint.
type ServerConfig struct {
	ListenAddr   string        `mapstructure:"listen_addr"`
	StreamPath   string        `mapstructure:"stream_path"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// MetricsConfig controls the Prometheus /metrics endpoint.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// LoggingConfig controls hclog's level.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// LoadConfig reads sherlockd.{yaml,json,...} from the working
// directory or /etc/sherlockd, falling back to defaults, with
// SHERLOCKD_-prefixed environment variable overrides.
func LoadConfig() (Config, error) {
	v := viper.New()

	v.SetDefault("server.listen_addr", ":8090")
	v.SetDefault("server.stream_path", "/stream")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 0) // 0: the stream endpoint is long-lived by design.

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.endpoint", "/metrics")

	v.SetDefault("logging.level", "info")

	v.SetConfigName("sherlockd")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/sherlockd")
	v.SetEnvPrefix("SHERLOCKD")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, fmt.Errorf("sherlockd: reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("sherlockd: unmarshaling config: %w", err)
	}
	return cfg, nil
}
