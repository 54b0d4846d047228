// Package roomguard is the resilience and safety layer for a real-time
// signaling service: distributed rate limiting, reconnection recovery
// with message replay, content security screening, and a structured
// error taxonomy. It is consumed in-process by the room orchestration
// layer; it defines no wire protocol of its own.
package roomguard

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roomguard/roomguard/logger"
	"github.com/roomguard/roomguard/ratelimit"
	"github.com/roomguard/roomguard/reconnect"
	"github.com/roomguard/roomguard/security"
)

// RedisConfig describes the shared store connection. All components key
// into the same store under disjoint prefixes.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	Password     string        `mapstructure:"password" yaml:"password"`
	DB           int           `mapstructure:"db" yaml:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// Config aggregates the configuration of every roomguard component.
type Config struct {
	Redis     RedisConfig                  `mapstructure:"redis" yaml:"redis"`
	Logging   logger.Config                `mapstructure:"logging" yaml:"logging"`
	RateLimit ratelimit.Config             `mapstructure:"rate_limit" yaml:"rate_limit"`
	Reconnect reconnect.Config             `mapstructure:"reconnect" yaml:"reconnect"`
	Sanitizer security.SanitizerConfig     `mapstructure:"sanitizer" yaml:"sanitizer"`
	Files     security.FileValidatorConfig `mapstructure:"files" yaml:"files"`
	Blocklist security.BlocklistConfig     `mapstructure:"blocklist" yaml:"blocklist"`

	// MetricsEnabled registers prometheus collectors on construction.
	MetricsEnabled bool `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
}

// DefaultConfig returns the default configuration for every component.
func DefaultConfig() Config {
	return Config{
		Redis: RedisConfig{
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Logging:   logger.DefaultConfig(),
		RateLimit: ratelimit.DefaultConfig(),
		Reconnect: reconnect.DefaultConfig(),
		Sanitizer: security.DefaultSanitizerConfig(),
		Files:     security.DefaultFileValidatorConfig(),
		Blocklist: security.DefaultBlocklistConfig(),
	}
}

// Validate checks the aggregate configuration.
func (c Config) Validate() error {
	if err := c.RateLimit.Validate(); err != nil {
		return err
	}
	if err := c.Reconnect.Validate(); err != nil {
		return err
	}
	return nil
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}
