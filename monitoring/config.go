package monitoring

import "fmt"

// Config of the metrics endpoint.
type Config struct {
	HTTP string `toml:",omitempty"`
	Port int    `toml:",omitempty"`
}

// DefaultConfig is the default config for monitoring of the distributor.
var DefaultConfig = Config{
	HTTP: "127.0.0.1",
	Port: 19090,
}

// Endpoint returns the host:port to listen on, or an empty string if
// monitoring is disabled.
func (c Config) Endpoint() string {
	if c.HTTP == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.HTTP, c.Port)
}
