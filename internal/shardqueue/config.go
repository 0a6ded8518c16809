package shardqueue

import "time"

// Config groups all tunables. Zero values take the defaults below; the service
// fills it from its COMPANION_DISPATCH_* settings.
type Config struct {
	Shards         int
	QueueSize      int
	EnqueueTimeout time.Duration

	MaxAttempts int
	BaseBackoff time.Duration
	MaxInterval time.Duration

	// Retryable reports whether a failed job should be attempted again.
	// Nil retries every error.
	Retryable func(error) bool

	// ErrorHandler is called after a job finally fails. Leave nil if you do not care.
	ErrorHandler func(key string, err error)
}

func (c *Config) applyDefaults() {
	if c.Shards <= 0 {
		c.Shards = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 128
	}
	if c.EnqueueTimeout <= 0 {
		c.EnqueueTimeout = 100 * time.Millisecond
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 100 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 5 * time.Second
	}
}
