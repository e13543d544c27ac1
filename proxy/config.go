package proxy

import "time"

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// UpstreamURL is the upstream chat service URL (e.g., "http://localhost:11434")
	UpstreamURL string

	// MaxLineBytes bounds a single SSE line. Zero uses the reader default.
	// A longer line stops assembly for that response; the client still
	// receives the full body.
	MaxLineBytes int

	// Timeout bounds one upstream exchange including the streamed body.
	// Defaults to 5 minutes.
	Timeout time.Duration
}
