// Package config loads the guardian configuration. Everything has a
// working default rooted under ~/.guardian; a missing config file is
// normal, a malformed one is an error.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// StateDir roots all guardian state. Defaults to ~/.guardian.
	StateDir string `yaml:"state_dir"`

	Audit   AuditConfig   `yaml:"audit"`
	Tokens  TokensConfig  `yaml:"tokens"`
	Exec    ExecConfig    `yaml:"exec"`
	Policy  PolicyConfig  `yaml:"policy"`
	Logging LoggingConfig `yaml:"logging"`
}

type AuditConfig struct {
	// Dir holds the day-partitioned receipt files. Defaults to
	// <state_dir>/audit.
	Dir string `yaml:"dir"`
}

type TokensConfig struct {
	// Path of the token database. Defaults to <state_dir>/tokens.db.
	Path string `yaml:"path"`

	// DefaultTTLSeconds applies when `guardian allow` is called without
	// an explicit --ttl.
	DefaultTTLSeconds int `yaml:"default_ttl_seconds"`
}

type ExecConfig struct {
	// Timeout bounds a single spawned command, e.g. "300s".
	Timeout string `yaml:"timeout"`
}

type PolicyConfig struct {
	// OverlayPath points at an optional overlay document with extra
	// block rules. Defaults to <state_dir>/policy.yaml; absent is fine.
	OverlayPath string `yaml:"overlay_path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
}

const (
	defaultTTLSeconds = 60
	defaultTimeout    = "300s"
)

// Default returns the configuration used when no file exists.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home dir: %w", err)
	}
	c := &Config{StateDir: filepath.Join(home, ".guardian")}
	c.applyDefaults()
	return c, nil
}

// DefaultPath returns the standard config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".guardian", "config.yaml"), nil
}

// Load reads the config at path, falling back to defaults when the file
// does not exist. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default()
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var c Config
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if c.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		c.StateDir = filepath.Join(home, ".guardian")
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Audit.Dir == "" {
		c.Audit.Dir = filepath.Join(c.StateDir, "audit")
	}
	if c.Tokens.Path == "" {
		c.Tokens.Path = filepath.Join(c.StateDir, "tokens.db")
	}
	if c.Tokens.DefaultTTLSeconds == 0 {
		c.Tokens.DefaultTTLSeconds = defaultTTLSeconds
	}
	if c.Exec.Timeout == "" {
		c.Exec.Timeout = defaultTimeout
	}
	if c.Policy.OverlayPath == "" {
		c.Policy.OverlayPath = filepath.Join(c.StateDir, "policy.yaml")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks the semantic constraints defaults cannot fix.
func (c *Config) Validate() error {
	if c.Tokens.DefaultTTLSeconds < 0 {
		return fmt.Errorf("tokens.default_ttl_seconds must be positive")
	}
	if _, err := c.ExecTimeout(); err != nil {
		return err
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug|info|warn|error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text|json, got %q", c.Logging.Format)
	}
	return nil
}

// ExecTimeout parses the command timeout.
func (c *Config) ExecTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Exec.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parse exec.timeout %q: %w", c.Exec.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("exec.timeout must be positive, got %s", c.Exec.Timeout)
	}
	return d, nil
}

// DefaultTokenTTL returns the default allow-token lifetime.
func (c *Config) DefaultTokenTTL() time.Duration {
	return time.Duration(c.Tokens.DefaultTTLSeconds) * time.Second
}
