package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent chatstream configuration stored as
// config.toml in the .chatstream/ directory.
type Config struct {
	Version int           `toml:"version"`
	Stream  StreamConfig  `toml:"stream"`
	Proxy   ProxyConfig   `toml:"proxy"`
	API     APIConfig     `toml:"api"`
	Publish PublishConfig `toml:"publish"`
}

// StreamConfig holds SSE reader settings shared by every command.
type StreamConfig struct {
	MaxLineBytes uint `toml:"max_line_bytes,omitempty"`
}

// ProxyConfig holds assembling proxy settings.
type ProxyConfig struct {
	Upstream string `toml:"upstream,omitempty"`
	Listen   string `toml:"listen,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// PublishConfig selects where assembled messages are published.
type PublishConfig struct {
	Provider  string   `toml:"provider,omitempty"`
	Brokers   []string `toml:"brokers,omitempty"`
	Topic     string   `toml:"topic,omitempty"`
	Workers   uint     `toml:"workers,omitempty"`
	QueueSize uint     `toml:"queue_size,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"stream.max_line_bytes": uintKey("stream.max_line_bytes", func(c *Config) *uint { return &c.Stream.MaxLineBytes }),
	"proxy.upstream": {
		get: func(c *Config) string { return c.Proxy.Upstream },
		set: func(c *Config, v string) error { c.Proxy.Upstream = v; return nil },
	},
	"proxy.listen": {
		get: func(c *Config) string { return c.Proxy.Listen },
		set: func(c *Config, v string) error { c.Proxy.Listen = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"publish.provider": {
		get: func(c *Config) string { return c.Publish.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case PublishNop, PublishKafka:
				c.Publish.Provider = v
				return nil
			default:
				return fmt.Errorf("invalid value for publish.provider: %q (available: %s, %s)", v, PublishNop, PublishKafka)
			}
		},
	},
	"publish.brokers": {
		get: func(c *Config) string { return strings.Join(c.Publish.Brokers, ",") },
		set: func(c *Config, v string) error { c.Publish.Brokers = SplitList(v); return nil },
	},
	"publish.topic": {
		get: func(c *Config) string { return c.Publish.Topic },
		set: func(c *Config, v string) error { c.Publish.Topic = v; return nil },
	},
	"publish.workers":    uintKey("publish.workers", func(c *Config) *uint { return &c.Publish.Workers }),
	"publish.queue_size": uintKey("publish.queue_size", func(c *Config) *uint { return &c.Publish.QueueSize }),
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
