package client

import "time"

// Config controls how the client connects.
type Config struct {
	URL              string // ws://host:port/ws
	HandshakeTimeout time.Duration
	// ReadTimeout bounds the wait for each server frame. Zero disables it;
	// an idle lobby is silent apart from pings.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ReadLimit    int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadLimit:        1 << 20,
	}
}
