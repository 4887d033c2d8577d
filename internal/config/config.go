// Package config loads the command line configuration.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables overriding configuration keys,
// e.g. COMMONWF_STORE_REDIS_ADDR.
const EnvPrefix = "COMMONWF"

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"

	OutputYAML = "yaml"
	OutputJSON = "json"
)

// Config holds all configuration options for commonwf.
type Config struct {
	LogLevel string      `mapstructure:"log_level"`
	Store    StoreConfig `mapstructure:"store"`
	Output   string      `mapstructure:"output"`
	Serve    ServeConfig `mapstructure:"serve"`
}

// StoreConfig selects the node store codes and pseudopotential families are loaded from.
type StoreConfig struct {
	Kind  string      `mapstructure:"kind"`
	Redis RedisConfig `mapstructure:"redis"`
	// Seed is a YAML file of nodes loaded into a memory store at startup.
	Seed string `mapstructure:"seed"`
}

// RedisConfig holds the connection settings of the redis store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// ServeConfig holds the HTTP server settings.
type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		LogLevel: "info",
		Store: StoreConfig{
			Kind: StoreMemory,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "commonwf:node:",
			},
		},
		Output: OutputYAML,
		Serve:  ServeConfig{Addr: ":8080"},
	}
}

// SetDefaults registers the defaults on v.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("store.kind", d.Store.Kind)
	v.SetDefault("store.seed", d.Store.Seed)
	v.SetDefault("store.redis.addr", d.Store.Redis.Addr)
	v.SetDefault("store.redis.password", d.Store.Redis.Password)
	v.SetDefault("store.redis.db", d.Store.Redis.DB)
	v.SetDefault("store.redis.prefix", d.Store.Redis.Prefix)
	v.SetDefault("output", d.Output)
	v.SetDefault("serve.addr", d.Serve.Addr)
}

// Load reads the configuration from file (optional), the environment and the defaults.
// Without an explicit file, commonwf.yaml is looked up in the working directory.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("commonwf")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	switch c.Store.Kind {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("invalid store.kind %q: expected %s or %s", c.Store.Kind, StoreMemory, StoreRedis)
	}
	switch c.Output {
	case OutputYAML, OutputJSON:
	default:
		return fmt.Errorf("invalid output %q: expected %s or %s", c.Output, OutputYAML, OutputJSON)
	}
	return nil
}
