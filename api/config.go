// Package api provides the HTTP API server for the griot persona engine.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// DisableMCP serves an MCP endpoint without tools.
	DisableMCP bool
}
