package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline, so the same logical flag
// cannot drift between "chatstream serve" and "chatstream serve proxy".
type Flag struct {
	// Name is the long flag name (e.g. "upstream").
	Name string

	// Shorthand is the one-letter short flag (e.g. "u"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "proxy.upstream").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagUpstream        = "upstream"
	FlagProxyListen     = "proxy-listen"
	FlagAPIListen       = "api-listen"
	FlagPublishProvider = "publish"
	FlagBrokers         = "brokers"
	FlagTopic           = "topic"
	FlagWorkers         = "workers"
	FlagMaxLineBytes    = "max-line-bytes"

	// Standalone subcommand variants use "listen" as the flag name
	// but bind to different viper keys depending on the service.
	FlagProxyListenStandalone = "proxy-listen-standalone"
	FlagAPIListenStandalone   = "api-listen-standalone"
)

// Registry holds every flag the chatstream commands register.
var Registry = FlagSet{
	FlagUpstream: {
		Name: "upstream", Shorthand: "u", ViperKey: "proxy.upstream",
		Description: "Upstream chat service URL",
	},
	FlagProxyListen: {
		Name: "proxy-listen", Shorthand: "p", ViperKey: "proxy.listen",
		Description: "Address for the proxy to listen on",
	},
	FlagAPIListen: {
		Name: "api-listen", Shorthand: "a", ViperKey: "api.listen",
		Description: "Address for the API server to listen on",
	},
	FlagProxyListenStandalone: {
		Name: "listen", Shorthand: "l", ViperKey: "proxy.listen",
		Description: "Address for the proxy to listen on",
	},
	FlagAPIListenStandalone: {
		Name: "listen", Shorthand: "l", ViperKey: "api.listen",
		Description: "Address for the API server to listen on",
	},
	FlagPublishProvider: {
		Name: "publish", ViperKey: "publish.provider",
		Description: "Where assembled messages are published (nop, kafka)",
	},
	FlagBrokers: {
		Name: "brokers", ViperKey: "publish.brokers",
		Description: "Comma separated Kafka broker addresses",
	},
	FlagTopic: {
		Name: "topic", ViperKey: "publish.topic",
		Description: "Kafka topic for assembled messages",
	},
	FlagWorkers: {
		Name: "workers", ViperKey: "publish.workers",
		Description: "Number of background publish workers",
	},
	FlagMaxLineBytes: {
		Name: "max-line-bytes", ViperKey: "stream.max_line_bytes",
		Description: "Longest SSE line accepted, in bytes",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
