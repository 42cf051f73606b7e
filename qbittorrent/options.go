package qbittorrent

import "time"

const (
	defaultTimeout     = 30 * time.Second
	defaultConcurrency = 8
)

// Option configures a Client.
type Option func(*clientOptions)

// clientOptions holds configuration options for the Client.
type clientOptions struct {
	timeout       time.Duration
	basicUser     string
	basicPass     string
	tlsSkipVerify bool
	concurrency   int
}

func defaultOptions() clientOptions {
	return clientOptions{
		timeout:     defaultTimeout,
		concurrency: defaultConcurrency,
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithBasicAuth sets credentials for a reverse proxy in front of the Web UI.
func WithBasicAuth(username, password string) Option {
	return func(o *clientOptions) {
		o.basicUser = username
		o.basicPass = password
	}
}

// WithInsecureSkipVerify disables certificate verification.
// Use with caution and only for development/testing.
func WithInsecureSkipVerify() Option {
	return func(o *clientOptions) {
		o.tlsSkipVerify = true
	}
}

// WithConcurrency limits the number of per-torrent requests in flight.
func WithConcurrency(n int) Option {
	return func(o *clientOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}
