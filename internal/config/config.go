// Package config handles configuration parsing for shell-parse-mcp.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultMaxBufferSize caps a session's accumulated input at 10 MiB unless
// configured otherwise.
const DefaultMaxBufferSize = 10 * 1024 * 1024

// DefaultMaxSessions limits concurrently open sessions.
const DefaultMaxSessions = 10

// DefaultConfigPath returns the default config file path:
// $XDG_CONFIG_HOME/shell-parse-mcp/config.yaml or ~/.config/shell-parse-mcp/config.yaml
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "shell-parse-mcp", "config.yaml")
}

// Config represents the top-level configuration.
type Config struct {
	Parser   ParserConfig   `yaml:"parser"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ParserConfig defines per-session parsing behavior.
type ParserConfig struct {
	// MaxBufferSize is the byte limit of a session's accumulated input.
	// An append pushing past it is rejected, never silently truncated.
	MaxBufferSize int `yaml:"max_buffer_size"`

	// EmitStatements controls whether sessions publish newly executable
	// statements by default. Tree-update-only callers disable it.
	EmitStatements bool `yaml:"emit_statements"`
}

// SecurityConfig defines resource limits.
type SecurityConfig struct {
	MaxSessions int `yaml:"max_sessions"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"

	// TruncateAttrs caps oversized input/fragment attributes in log
	// records so large buffers never flood the log stream.
	TruncateAttrs bool `yaml:"truncate_attrs"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Parser: ParserConfig{
			MaxBufferSize:  DefaultMaxBufferSize,
			EmitStatements: true,
		},
		Security: SecurityConfig{
			MaxSessions: DefaultMaxSessions,
		},
		Logging: LoggingConfig{
			Level:         "info",
			TruncateAttrs: true,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration, repairing nonsensical values.
func (c *Config) Validate() error {
	if c.Parser.MaxBufferSize <= 0 {
		c.Parser.MaxBufferSize = DefaultMaxBufferSize
	}
	if c.Security.MaxSessions <= 0 {
		c.Security.MaxSessions = DefaultMaxSessions
	}
	return nil
}
