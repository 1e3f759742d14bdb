// Package config loads the YAML configuration shared by the example servers.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/chabad360/go-osc/v2/osc"
)

// Config is the top-level configuration of an OSC server.
type Config struct {
	// Network is "udp" or "tcp". Defaults to udp.
	Network string `yaml:"network"`

	// Addr is the listen address, e.g. "127.0.0.1:8765".
	Addr string `yaml:"addr"`

	// Framing is the TCP framing: "osc1.0" (length prefix) or "osc1.1"
	// (SLIP). Ignored for UDP.
	Framing string `yaml:"framing"`

	// ReadTimeout bounds every read, e.g. "30s". Zero disables it.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// MaxDepth bounds bundle nesting. Zero uses osc.DefaultMaxDepth.
	MaxDepth int `yaml:"max_depth"`

	// MaxFrameSize bounds TCP frames in bytes. Zero uses osc.DefaultMaxFrameSize.
	MaxFrameSize int `yaml:"max_frame_size"`

	// DelayBundles postpones bundles until their time tag.
	DelayBundles bool `yaml:"delay_bundles"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Network:  "udp",
		Addr:     "127.0.0.1:8765",
		Framing:  "osc1.0",
		LogLevel: "info",
	}
}

// Load reads a configuration from a YAML file. Unset fields keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse decodes a YAML document over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Network {
	case "udp", "udp4", "udp6", "tcp", "tcp4", "tcp6":
	default:
		return errors.Errorf("network %q is not udp or tcp", c.Network)
	}
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if _, err := osc.ParseFraming(c.Framing); err != nil {
		return err
	}
	if c.ReadTimeout < 0 {
		return errors.Errorf("read_timeout %s is negative", c.ReadTimeout)
	}
	if c.MaxDepth < 0 {
		return errors.Errorf("max_depth %d is negative", c.MaxDepth)
	}
	if c.MaxFrameSize < 0 {
		return errors.Errorf("max_frame_size %d is negative", c.MaxFrameSize)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns LogLevel as a slog level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return level, errors.Wrapf(err, "log_level %q", c.LogLevel)
	}
	return level, nil
}

// Server builds an osc.Server from the configuration. The dispatcher and
// logger are supplied by the caller.
func (c *Config) Server(d *osc.Dispatcher, logger osc.SLogger) (*osc.Server, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	framing, _ := osc.ParseFraming(c.Framing)
	return &osc.Server{
		Addr:         c.Addr,
		Network:      c.Network,
		Framing:      framing,
		Dispatcher:   d,
		ReadTimeout:  c.ReadTimeout,
		MaxDepth:     c.MaxDepth,
		MaxFrameSize: c.MaxFrameSize,
		DelayBundles: c.DelayBundles,
		Logger:       logger,
	}, nil
}
