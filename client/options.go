package client

import (
	"fmt"
	"os"
	"time"
)

// Option configures a Client during construction in New.
type Option func(*Client) error

// WithHTTPTimeout bounds the total time spent on a single request. Prefer
// per-request context deadlines; this is a coarse safety net.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("http timeout must be > 0")
		}
		c.r.SetTimeout(d)
		return nil
	}
}

// WithRetries retries transport failures, 429 and 5xx responses up to n times.
func WithRetries(n int, wait time.Duration) Option {
	return func(c *Client) error {
		if n < 0 {
			return fmt.Errorf("retry count must be >= 0")
		}
		c.r.SetRetryCount(n).SetRetryWaitTime(wait).SetRetryMaxWaitTime(8 * wait)
		return nil
	}
}

// WithDebugLogging logs each request and response. Do not enable it in
// production; bodies are logged verbatim.
func WithDebugLogging(enabled bool) Option {
	return func(c *Client) error {
		c.r.SetDebug(enabled)
		return nil
	}
}

// debugLoggingRequested reports whether COMPANION_DEBUG or DEBUG is "true".
func debugLoggingRequested() bool {
	return os.Getenv("COMPANION_DEBUG") == "true" || os.Getenv("DEBUG") == "true"
}
