// Package config loads adboard settings.
//
// Sources, highest priority first:
//  1. explicit --config path;
//  2. CONFIG_PATH;
//  3. ./adboard.yaml;
//  4. environment only.
//
// Environment variables always override values read from a file.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultFile is the config file picked up from the working directory.
const DefaultFile = "adboard.yaml"

// Store backends.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreEnv      = "env"
	StoreKeychain = "keychain"
	StoreRedis    = "redis"
)

type Config struct {
	Env      string      `yaml:"env" env:"ENV" env-default:"development"`
	LogLevel string      `yaml:"log_level" env:"LOG_LEVEL" env-default:"info" validate:"oneof=trace debug info warn error"`
	API      APIConfig   `yaml:"api"`
	Store    StoreConfig `yaml:"store"`
	Proxy    ProxyConfig `yaml:"proxy"`
}

// APIConfig describes the marketplace API and how to reach it.
type APIConfig struct {
	BaseURL string        `yaml:"base_url" env:"ADBOARD_BASE_URL" env-default:"http://localhost:8000" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" env:"ADBOARD_HTTP_TIMEOUT" env-default:"30s" validate:"gt=0"`
	// BreakerThreshold is the number of consecutive failures that opens the
	// circuit breaker. Zero disables it.
	BreakerThreshold uint32        `yaml:"breaker_threshold" env:"ADBOARD_BREAKER_THRESHOLD" env-default:"5"`
	BreakerTimeout   time.Duration `yaml:"breaker_timeout" env:"ADBOARD_BREAKER_TIMEOUT" env-default:"30s"`
	UserAgent        string        `yaml:"user_agent" env:"ADBOARD_USER_AGENT" env-default:"adboard/1.0"`
}

// StoreConfig selects where the session is kept.
type StoreConfig struct {
	Type string `yaml:"type" env:"ADBOARD_STORE" env-default:"file" validate:"oneof=memory file env keychain redis"`
	// Path of the session file. Empty means the XDG default.
	Path  string      `yaml:"path" env:"ADBOARD_SESSION_PATH"`
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0" validate:"gte=0"`
	Prefix   string        `yaml:"prefix" env:"REDIS_PREFIX" env-default:"adboard"`
	TTL      time.Duration `yaml:"ttl" env:"REDIS_TTL" env-default:"0s" validate:"gte=0"`
}

// ProxyConfig is the local authenticating proxy.
type ProxyConfig struct {
	Host string `yaml:"host" env:"PROXY_HOST" env-default:"127.0.0.1"`
	Port string `yaml:"port" env:"PORT" env-default:"9879"`
	// AdminAPIKey protects the /session endpoints. Empty disables the check.
	AdminAPIKey string `yaml:"admin_api_key" env:"ADMIN_API_KEY"`
}

func (p ProxyConfig) Addr() string { return net.JoinHostPort(p.Host, p.Port) }

// IsProduction reports whether Env selects production logging.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// MustLoad panics if the configuration cannot be loaded.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	var cfg Config

	readFile := func(p string) error {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("config file %q stat failed: %w", p, err)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return fmt.Errorf("failed to read config %q: %w", p, err)
		}
		return nil
	}

	switch {
	case path != "":
		if err := readFile(path); err != nil {
			return nil, err
		}
	case os.Getenv("CONFIG_PATH") != "":
		if err := readFile(os.Getenv("CONFIG_PATH")); err != nil {
			return nil, err
		}
	default:
		if _, err := os.Stat(DefaultFile); err == nil {
			if err := readFile(DefaultFile); err != nil {
				return nil, err
			}
		} else if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
