package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Log.Level)
	}
	if cfg.Fetch.Timeout != 30*time.Second {
		t.Errorf("expected default fetch timeout 30s, got %s", cfg.Fetch.Timeout)
	}
	if cfg.Fetch.MaxRetries != 0 {
		t.Errorf("expected no retries by default, got %d", cfg.Fetch.MaxRetries)
	}
	if cfg.Cache.RedisAddr != "" {
		t.Error("expected redis cache disabled by default")
	}
	if cfg.Output.Version != "1.7" || cfg.Output.Compression != 9 {
		t.Errorf("unexpected output defaults: %+v", cfg.Output)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{name: "upper case level", modify: func(c *Config) { c.Log.Level = "DEBUG" }},
		{name: "unknown level", modify: func(c *Config) { c.Log.Level = "loud" }, wantErr: true},
		{name: "negative timeout", modify: func(c *Config) { c.Fetch.Timeout = -time.Second }, wantErr: true},
		{name: "negative backoff", modify: func(c *Config) { c.Fetch.InitialBackoff = -1 }, wantErr: true},
		{name: "negative body cap", modify: func(c *Config) { c.Fetch.MaxBodyBytes = -1 }, wantErr: true},
		{name: "negative redis db", modify: func(c *Config) { c.Cache.RedisDB = -1 }, wantErr: true},
		{name: "negative concurrency", modify: func(c *Config) { c.Combine.MaxConcurrency = -2 }, wantErr: true},
		{name: "pdf 2.0", modify: func(c *Config) { c.Output.Version = "2.0" }, wantErr: true},
		{name: "bad version", modify: func(c *Config) { c.Output.Version = "1.9" }, wantErr: true},
		{name: "compression too high", modify: func(c *Config) { c.Output.Compression = 10 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfcombine.yaml")
	content := `
log:
  level: debug
  pretty: true
fetch:
  timeout: 5s
  max_retries: 2
  initial_backoff: 250ms
cache:
  redis_addr: localhost:6379
  ttl: 10m
combine:
  max_concurrency: 4
output:
  version: "1.5"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Pretty {
		t.Errorf("unexpected log section: %+v", cfg.Log)
	}
	if cfg.Fetch.Timeout != 5*time.Second || cfg.Fetch.MaxRetries != 2 || cfg.Fetch.InitialBackoff != 250*time.Millisecond {
		t.Errorf("unexpected fetch section: %+v", cfg.Fetch)
	}
	if cfg.Fetch.UserAgent != DefaultConfig().Fetch.UserAgent {
		t.Errorf("unset user agent should keep its default, got %q", cfg.Fetch.UserAgent)
	}
	if cfg.Cache.RedisAddr != "localhost:6379" || cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("unexpected cache section: %+v", cfg.Cache)
	}
	if cfg.Combine.MaxConcurrency != 4 {
		t.Errorf("expected max_concurrency 4, got %d", cfg.Combine.MaxConcurrency)
	}
	if cfg.Output.Version != "1.5" || cfg.Output.Compression != 9 {
		t.Errorf("unexpected output section: %+v", cfg.Output)
	}
}

func TestLoadMissingDefaultFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load without a config file should use defaults: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected defaults, got %+v", cfg.Log)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing explicit config file")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("output:\n  compression: 12\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(bad)
	if err == nil || !strings.Contains(err.Error(), "output.compression") {
		t.Fatalf("expected compression error, got %v", err)
	}

	broken := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(broken, []byte("log: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(broken); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestSettingsConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "warn"
	cfg.Fetch.UserAgent = "test-agent"
	cfg.Fetch.MaxBodyBytes = 1024
	cfg.Output.Version = "1.4"
	cfg.Output.Compression = 0

	if lc := cfg.LogSettings(); lc.Level != "warn" || lc.Pretty {
		t.Errorf("unexpected log settings: %+v", lc)
	}
	fc := cfg.FetchSettings()
	if fc.UserAgent != "test-agent" || fc.MaxBodyBytes != 1024 || fc.Timeout != 30*time.Second {
		t.Errorf("unexpected fetch settings: %+v", fc)
	}
	dc := cfg.DocumentSettings()
	if dc.Version != "1.4" || dc.Compression != 0 {
		t.Errorf("unexpected document settings: %+v", dc)
	}
}
