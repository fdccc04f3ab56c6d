// Package config provides configuration loading for pdfcombine.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wudi/pdfcombine/document"
	"github.com/wudi/pdfcombine/fetch"
	"github.com/wudi/pdfcombine/observability"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "pdfcombine.yaml"

// Config is the complete pdfcombine configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Cache   CacheConfig   `yaml:"cache"`
	Combine CombineConfig `yaml:"combine"`
	Output  OutputConfig  `yaml:"output"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error (default: info)
	Level string `yaml:"level"`
	// Pretty switches to human-readable console output
	Pretty bool `yaml:"pretty"`
}

// FetchConfig configures downloads of URL sources.
type FetchConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	UserAgent      string        `yaml:"user_agent"`
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

// CacheConfig configures the optional Redis response cache.
type CacheConfig struct {
	// RedisAddr enables the cache when non-empty (e.g. "localhost:6379")
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	TTL       time.Duration `yaml:"ttl"`
}

// CombineConfig configures batch execution.
type CombineConfig struct {
	// MaxConcurrency bounds pipelines per batch (0 = unbounded)
	MaxConcurrency int `yaml:"max_concurrency"`
}

// OutputConfig configures encoding of the combined document.
type OutputConfig struct {
	Version     string `yaml:"version"`
	Compression int    `yaml:"compression"`
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

var pdfVersions = map[string]bool{
	"1.0": true, "1.1": true, "1.2": true, "1.3": true,
	"1.4": true, "1.5": true, "1.6": true, "1.7": true,
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	f := fetch.DefaultConfig()
	d := document.DefaultConfig()
	return &Config{
		Log: LogConfig{Level: "info"},
		Fetch: FetchConfig{
			Timeout:        f.Timeout,
			UserAgent:      f.UserAgent,
			MaxRetries:     f.MaxRetries,
			InitialBackoff: f.InitialBackoff,
			MaxBodyBytes:   f.MaxBodyBytes,
		},
		Cache: CacheConfig{TTL: time.Hour},
		Output: OutputConfig{
			Version:     d.Version,
			Compression: d.Compression,
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !logLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	if c.Fetch.Timeout < 0 {
		return errors.New("fetch.timeout must not be negative")
	}
	if c.Fetch.InitialBackoff < 0 {
		return errors.New("fetch.initial_backoff must not be negative")
	}
	if c.Fetch.MaxBodyBytes < 0 {
		return errors.New("fetch.max_body_bytes must not be negative")
	}
	if c.Cache.RedisDB < 0 {
		return errors.New("cache.redis_db must not be negative")
	}
	if c.Combine.MaxConcurrency < 0 {
		return errors.New("combine.max_concurrency must not be negative")
	}
	if !pdfVersions[c.Output.Version] {
		return fmt.Errorf("output.version %q is not a PDF version", c.Output.Version)
	}
	if c.Output.Compression < 0 || c.Output.Compression > 9 {
		return fmt.Errorf("output.compression must be between 0 and 9, got %d", c.Output.Compression)
	}
	return nil
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path tries DefaultFile; a missing DefaultFile yields the
// defaults, but a missing explicit path is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LogSettings converts the log section for observability.Setup.
func (c *Config) LogSettings() observability.LogConfig {
	lc := observability.DefaultLogConfig()
	lc.Level = c.Log.Level
	lc.Pretty = c.Log.Pretty
	return lc
}

// FetchSettings converts the fetch section for fetch.New.
func (c *Config) FetchSettings() fetch.Config {
	fc := fetch.DefaultConfig()
	fc.Timeout = c.Fetch.Timeout
	fc.UserAgent = c.Fetch.UserAgent
	fc.MaxRetries = c.Fetch.MaxRetries
	fc.InitialBackoff = c.Fetch.InitialBackoff
	fc.MaxBodyBytes = c.Fetch.MaxBodyBytes
	return fc
}

// DocumentSettings converts the output section for document.NewCodec.
func (c *Config) DocumentSettings() document.Config {
	return document.Config{
		Version:     c.Output.Version,
		Compression: c.Output.Compression,
	}
}
