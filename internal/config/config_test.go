package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, `
workers: 6
user_agent: "moss-test/1"
progress_interval: 250ms
dns_cache_ttl: 5m
listen: "127.0.0.1:9988"
log_level: debug
git_path: /usr/local/bin/git
`)
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Workers != 6 {
		t.Errorf("workers = %d, want 6", cfg.Workers)
	}
	if cfg.UserAgent != "moss-test/1" {
		t.Errorf("user_agent = %q", cfg.UserAgent)
	}
	if cfg.ProgressInterval != 250*time.Millisecond {
		t.Errorf("progress_interval = %v", cfg.ProgressInterval)
	}
	if cfg.DNSCacheTTL != 5*time.Minute {
		t.Errorf("dns_cache_ttl = %v", cfg.DNSCacheTTL)
	}
	if cfg.Listen != "127.0.0.1:9988" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}
	if cfg.GitPath != "/usr/local/bin/git" {
		t.Errorf("git_path = %q", cfg.GitPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config invalid: %v", err)
	}
}

func TestLoadFromFilePartialKeepsDefaults(t *testing.T) {
	path := writeFile(t, "workers: 2\n")
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	def := Default()
	if cfg.Workers != 2 {
		t.Errorf("workers = %d, want 2", cfg.Workers)
	}
	if cfg.UserAgent != def.UserAgent || cfg.ProgressInterval != def.ProgressInterval {
		t.Errorf("unset keys did not keep their defaults: %+v", cfg)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("missing file accepted")
	}
	if _, err := LoadFromFile(writeFile(t, "progress_interval: shortly\n")); err == nil {
		t.Errorf("unparseable duration accepted")
	}
	if _, err := LoadFromFile(writeFile(t, "{not yaml")); err == nil {
		t.Errorf("malformed yaml accepted")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MOSS_FETCH_WORKERS", "9")
	t.Setenv("MOSS_FETCH_USER_AGENT", "env-agent")
	t.Setenv("MOSS_FETCH_PROGRESS_INTERVAL", "1s")
	t.Setenv("MOSS_FETCH_LOG_LEVEL", "warn")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Workers != 9 || cfg.UserAgent != "env-agent" ||
		cfg.ProgressInterval != time.Second || cfg.LogLevel != "warn" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadFromEnvErrors(t *testing.T) {
	t.Setenv("MOSS_FETCH_WORKERS", "many")
	cfg := Default()
	if err := cfg.LoadFromEnv(); err == nil {
		t.Errorf("non-numeric worker count accepted")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"empty user agent", func(c *Config) { c.UserAgent = "" }},
		{"zero progress interval", func(c *Config) { c.ProgressInterval = 0 }},
		{"zero dns ttl", func(c *Config) { c.DNSCacheTTL = 0 }},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }},
		{"empty git path", func(c *Config) { c.GitPath = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("invalid config accepted")
			}
		})
	}
}
