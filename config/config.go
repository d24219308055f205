// Package config loads the server's runtime configuration via Viper,
// the way the rest of the retrieved microservice pack does it: a typed
// struct with mapstructure tags, populated from a YAML file discovered
// on a small search path plus environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Running struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"running"`

	Agent struct {
		// Prefix for agent ids (default "agent"). No other package in
		// this module reads it: the server names a WebSocket client that
		// connects without an agent "anon-<uuid>".
		Prefix string `mapstructure:"prefix"`
	} `mapstructure:"agent"`

	Mysql struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"mysql"`

	Redis struct {
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		TTL      time.Duration `mapstructure:"ttl"`
	} `mapstructure:"redis"`

	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
}

// Load reads egwalker.yaml from the current directory, ./config, or
// /etc/egwalker; environment variables prefixed EGWALKER_ (nested keys
// joined with underscores, e.g. EGWALKER_REDIS_ADDR) take precedence
// over values from the file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("egwalker")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/egwalker")

	v.SetEnvPrefix("EGWALKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("running.port", 8080)
	v.SetDefault("agent.prefix", "agent")
	v.SetDefault("redis.ttl", 30*time.Second)
	v.SetDefault("kafka.topic", "egwalker.ops")
	// Registered so AutomaticEnv values reach Unmarshal without a file.
	v.SetDefault("mysql.dsn", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("kafka.brokers", []string{})

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
