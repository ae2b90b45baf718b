// Package config loads bebetter settings from YAML with environment
// overrides. Missing files are not an error: Default() applies.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/bebetter/internal/kv"
)

// Environment variables that override file values.
const (
	EnvPort    = "PORT"
	EnvAPIBase = "BEBETTER_API_BASE"
	EnvDataDir = "BEBETTER_DATA_DIR"
)

// Config is the top-level configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
}

// ServerConfig configures `bebetter serve`.
type ServerConfig struct {
	Port          int           `yaml:"port"`
	DBPath        string        `yaml:"db_path"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	StartingCoins int           `yaml:"starting_coins"`
	// LoginRate is the sustained login attempts per second allowed per
	// client IP; LoginBurst is the bucket size.
	LoginRate  float64 `yaml:"login_rate"`
	LoginBurst int     `yaml:"login_burst"`
}

// ClientConfig configures the local ledger and its sync bridge.
type ClientConfig struct {
	APIBase        string        `yaml:"api_base"`
	DataDir        string        `yaml:"data_dir"`
	Storage        string        `yaml:"storage"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:          3000,
			DBPath:        "bebetter.db",
			SessionTTL:    7 * 24 * time.Hour,
			StartingCoins: 0,
			LoginRate:     1,
			LoginBurst:    5,
		},
		Client: ClientConfig{
			APIBase:        "http://localhost:3000",
			DataDir:        defaultDataDir(),
			Storage:        kv.BackendSQLite,
			RequestTimeout: 10 * time.Second,
			MaxRetries:     3,
		},
	}
}

// Load reads path over Default() and applies environment overrides.
// An empty path or a missing file yields defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := decode(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode rejects unknown keys so typos surface instead of silently
// falling back to defaults.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookup(EnvAPIBase); ok && v != "" {
		cfg.Client.APIBase = v
	}
	if v, ok := lookup(EnvDataDir); ok && v != "" {
		cfg.Client.DataDir = v
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.SessionTTL <= 0 {
		return fmt.Errorf("server.session_ttl must be positive")
	}
	if c.Server.StartingCoins < 0 {
		return fmt.Errorf("server.starting_coins must not be negative")
	}
	if c.Server.LoginRate <= 0 || c.Server.LoginBurst < 1 {
		return fmt.Errorf("server.login_rate and server.login_burst must be positive")
	}
	if c.Client.APIBase == "" {
		return fmt.Errorf("client.api_base is required")
	}
	if !validBackend(c.Client.Storage) {
		return fmt.Errorf("client.storage %q: must be one of %v", c.Client.Storage, kv.ValidBackends)
	}
	if c.Client.RequestTimeout <= 0 {
		return fmt.Errorf("client.request_timeout must be positive")
	}
	if c.Client.MaxRetries < 1 {
		return fmt.Errorf("client.max_retries must be at least 1")
	}
	return nil
}

// Addr is the server listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func validBackend(name string) bool {
	for _, b := range kv.ValidBackends {
		if b == name {
			return true
		}
	}
	return false
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "bebetter")
	}
	return ".bebetter"
}
