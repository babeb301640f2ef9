// Package config loads the moss-fetch CLI configuration and the job
// manifest. Precedence is flags over environment over file over
// defaults; the flag layer lives in the CLI, this package covers the
// rest.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines configuration for the moss-fetch CLI.
type Config struct {
	Workers          int           `yaml:"workers"`
	UserAgent        string        `yaml:"user_agent"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
	DNSCacheTTL      time.Duration `yaml:"dns_cache_ttl"`
	Listen           string        `yaml:"listen"`
	LogFile          string        `yaml:"log_file"`
	LogLevel         string        `yaml:"log_level"`
	GitPath          string        `yaml:"git_path"`
	Token            string        `yaml:"token"`
}

// Default returns a Config with sensible defaults. Workers zero means
// "let the engine pick".
func Default() Config {
	return Config{
		Workers:          0,
		UserAgent:        "libmoss/0.1",
		ProgressInterval: 100 * time.Millisecond,
		DNSCacheTTL:      time.Minute,
		LogLevel:         "info",
		GitPath:          "git",
	}
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	Workers          int    `yaml:"workers"`
	UserAgent        string `yaml:"user_agent"`
	ProgressInterval string `yaml:"progress_interval"`
	DNSCacheTTL      string `yaml:"dns_cache_ttl"`
	Listen           string `yaml:"listen"`
	LogFile          string `yaml:"log_file"`
	LogLevel         string `yaml:"log_level"`
	GitPath          string `yaml:"git_path"`
	Token            string `yaml:"token"`
}

// LoadFromFile loads configuration from a YAML file on top of the
// defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	if yc.UserAgent != "" {
		cfg.UserAgent = yc.UserAgent
	}
	if yc.ProgressInterval != "" {
		d, err := time.ParseDuration(yc.ProgressInterval)
		if err != nil {
			return Config{}, fmt.Errorf("parse progress_interval: %w", err)
		}
		cfg.ProgressInterval = d
	}
	if yc.DNSCacheTTL != "" {
		d, err := time.ParseDuration(yc.DNSCacheTTL)
		if err != nil {
			return Config{}, fmt.Errorf("parse dns_cache_ttl: %w", err)
		}
		cfg.DNSCacheTTL = d
	}
	if yc.Listen != "" {
		cfg.Listen = yc.Listen
	}
	if yc.LogFile != "" {
		cfg.LogFile = yc.LogFile
	}
	if yc.LogLevel != "" {
		cfg.LogLevel = yc.LogLevel
	}
	if yc.GitPath != "" {
		cfg.GitPath = yc.GitPath
	}
	if yc.Token != "" {
		cfg.Token = yc.Token
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the MOSS_FETCH_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("MOSS_FETCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse MOSS_FETCH_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("MOSS_FETCH_USER_AGENT"); v != "" {
		c.UserAgent = v
	}
	if v := os.Getenv("MOSS_FETCH_PROGRESS_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse MOSS_FETCH_PROGRESS_INTERVAL: %w", err)
		}
		c.ProgressInterval = d
	}
	if v := os.Getenv("MOSS_FETCH_DNS_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse MOSS_FETCH_DNS_CACHE_TTL: %w", err)
		}
		c.DNSCacheTTL = d
	}
	if v := os.Getenv("MOSS_FETCH_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("MOSS_FETCH_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv("MOSS_FETCH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("MOSS_FETCH_GIT_PATH"); v != "" {
		c.GitPath = v
	}
	if v := os.Getenv("MOSS_FETCH_TOKEN"); v != "" {
		c.Token = v
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return errors.New("config: workers must not be negative")
	}
	if c.UserAgent == "" {
		return errors.New("config: user_agent is required")
	}
	if c.ProgressInterval <= 0 {
		return errors.New("config: progress_interval must be positive")
	}
	if c.DNSCacheTTL <= 0 {
		return errors.New("config: dns_cache_ttl must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	if c.GitPath == "" {
		return errors.New("config: git_path is required")
	}
	return nil
}
