// Package config loads pinger settings from YAML or TOML files and
// command line overrides.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

// Socket kinds
const (
	// SocketRaw is a raw ICMP socket opened directly, needs privileges
	SocketRaw = "raw"
	// SocketICMP is x/net "ip4:icmp" connection, needs privileges
	SocketICMP = "icmp"
	// SocketUDP is x/net "udp4" ICMP datagram socket, unprivileged
	SocketUDP = "udp"
)

// Output formats
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// maxPayload fits ICMP message into IPv4 datagram
const maxPayload = 65535 - 20 - 8

// ErrInvalid is wrapped by every validation error
var ErrInvalid = errors.New("invalid configuration")

// Config holds settings of one ping session
type Config struct {
	Host             string        `koanf:"host"`
	Count            int           `koanf:"count"`
	Timeout          time.Duration `koanf:"timeout"`
	Interval         time.Duration `koanf:"interval"`
	Socket           string        `koanf:"socket"`
	PayloadSize      int           `koanf:"payload_size"`
	StrictIdentifier bool          `koanf:"strict_identifier"`
	Output           string        `koanf:"output"`
	LogLevel         string        `koanf:"log_level"`
	MetricsAddr      string        `koanf:"metrics_addr"`
}

// Default returns config with default values
func Default() Config {
	return Config{
		Count:       5,
		Timeout:     5 * time.Second,
		Interval:    time.Second,
		Socket:      SocketRaw,
		PayloadSize: 56,
		Output:      OutputText,
		LogLevel:    "info",
	}
}

// Load reads optional config file at path, applies overrides on top of it
// and validates the result. Empty path skips the file.
func Load(path string, overrides map[string]interface{}) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".toml":
			parser = toml.Parser()
		default:
			return nil, fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .toml)", filepath.Ext(path))
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	for key, val := range overrides {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid field
func (c *Config) Validate() error {
	var err error
	invalid := func(format string, args ...interface{}) {
		err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalid}, args...)...))
	}

	if c.Host == "" {
		invalid("host is required")
	}
	if c.Count < 1 {
		invalid("count must be positive, got %d", c.Count)
	}
	if c.Timeout <= 0 {
		invalid("timeout must be positive, got %s", c.Timeout)
	}
	if c.Interval < 0 {
		invalid("interval must not be negative, got %s", c.Interval)
	}
	if c.PayloadSize < 0 || c.PayloadSize > maxPayload {
		invalid("payload_size must be within [0, %d], got %d", maxPayload, c.PayloadSize)
	}
	switch c.Socket {
	case SocketRaw, SocketICMP, SocketUDP:
	default:
		invalid("unknown socket %q", c.Socket)
	}
	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		invalid("unknown output %q", c.Output)
	}
	if _, lerr := zapcore.ParseLevel(c.LogLevel); lerr != nil {
		invalid("log_level: %v", lerr)
	}

	return err
}

// Level returns parsed log level, info if LogLevel is invalid
func (c *Config) Level() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
