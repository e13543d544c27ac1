package config

// Publish providers.
const (
	PublishNop   = "nop"
	PublishKafka = "kafka"
)

const (
	defaultMaxLineBytes = 1024 * 1024

	defaultUpstream    = "http://localhost:11434"
	defaultProxyListen = ":8080"
	defaultAPIListen   = ":8081"

	defaultPublishProvider = PublishNop
	defaultTopic           = "chatstream.messages"
	defaultWorkers         = 3
	defaultQueueSize       = 256
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Stream: StreamConfig{
			MaxLineBytes: defaultMaxLineBytes,
		},
		Proxy: ProxyConfig{
			Upstream: defaultUpstream,
			Listen:   defaultProxyListen,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Publish: PublishConfig{
			Provider:  defaultPublishProvider,
			Topic:     defaultTopic,
			Workers:   defaultWorkers,
			QueueSize: defaultQueueSize,
		},
	}
}
