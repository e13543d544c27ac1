// Package api provides an HTTP API server that assembles captured chat streams.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// MaxLineBytes bounds a single SSE line. Zero uses the reader default.
	MaxLineBytes int

	// BodyLimit caps request bodies in bytes. Zero uses fiber's default.
	BodyLimit int
}
