// Package config loads server configuration from a YAML file named on the
// command line, with sane defaults for everything else.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// TLSConfig carries the fixed filesystem paths for the optional TLS wrap
// of the framed-stream transport.
type TLSConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	CertFile     string `mapstructure:"cert_file"`
	KeyFile      string `mapstructure:"key_file"`
	DHParamsFile string `mapstructure:"dh_params_file"`
}

// Config is the full set of server tunables.
type Config struct {
	UDPPort         int           `mapstructure:"udp_port"`
	StreamPort      int           `mapstructure:"stream_port"`
	MixInterval     time.Duration `mapstructure:"mix_interval"`
	ActivityTimeout time.Duration `mapstructure:"activity_timeout"`
	MaxHistory      int           `mapstructure:"max_history"`
	MaxFramePayload int64         `mapstructure:"max_frame_payload"`
	MaxDatagramSize int           `mapstructure:"max_datagram_size"`
	TLS             TLSConfig     `mapstructure:"tls"`
	AdminAddr       string        `mapstructure:"admin_addr"`
	LogLevel        string        `mapstructure:"log_level"`
}

// Load reads path as a YAML config file. Unlike a dev-mode fallback, a
// missing or malformed file is fatal: the CLI contract is "server
// <config_file>", exit 1 on load failure.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)

	v.SetDefault("udp_port", 12345)
	v.SetDefault("stream_port", 8080)
	v.SetDefault("mix_interval", "20ms")
	v.SetDefault("activity_timeout", "5s")
	v.SetDefault("max_history", 50)
	v.SetDefault("max_frame_payload", 100*1024*1024)
	v.SetDefault("max_datagram_size", 32*1024)
	v.SetDefault("admin_addr", ":8081")
	v.SetDefault("log_level", "info")
	v.SetDefault("tls.enabled", false)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
