// Package api provides the HTTP surface of the flowcanvas pipeline: turn
// submission with a streamed response, and the usage quota endpoints.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8090")
	ListenAddr string
}
