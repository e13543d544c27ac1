package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/chatstream/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable read by InitViper.
const EnvPrefix = "CHATSTREAM"

// InitViper creates and returns a configured *viper.Viper.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (CHATSTREAM_PROXY_UPSTREAM, CHATSTREAM_PUBLISH_TOPIC, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	target, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper builds a Config from the merged viper view.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Version: v.GetInt("version"),
		Stream: StreamConfig{
			MaxLineBytes: v.GetUint("stream.max_line_bytes"),
		},
		Proxy: ProxyConfig{
			Upstream: v.GetString("proxy.upstream"),
			Listen:   v.GetString("proxy.listen"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Publish: PublishConfig{
			Provider:  v.GetString("publish.provider"),
			Brokers:   brokers(v),
			Topic:     v.GetString("publish.topic"),
			Workers:   v.GetUint("publish.workers"),
			QueueSize: v.GetUint("publish.queue_size"),
		},
	}
	applyDefaults(cfg)
	return cfg
}

// brokers accepts both a TOML array and a comma separated env or flag value.
func brokers(v *viper.Viper) []string {
	var out []string
	for _, b := range v.GetStringSlice("publish.brokers") {
		out = append(out, SplitList(b)...)
	}
	return out
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("stream.max_line_bytes", d.Stream.MaxLineBytes)

	v.SetDefault("proxy.upstream", d.Proxy.Upstream)
	v.SetDefault("proxy.listen", d.Proxy.Listen)

	v.SetDefault("api.listen", d.API.Listen)

	v.SetDefault("publish.provider", d.Publish.Provider)
	v.SetDefault("publish.brokers", d.Publish.Brokers)
	v.SetDefault("publish.topic", d.Publish.Topic)
	v.SetDefault("publish.workers", d.Publish.Workers)
	v.SetDefault("publish.queue_size", d.Publish.QueueSize)
}
