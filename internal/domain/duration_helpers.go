package domain

import "time"

// ShutdownTimeout returns the graceful shutdown timeout, applying defaults.
func (c ServiceConfig) ShutdownTimeout() time.Duration {
	seconds := c.ShutdownTimeoutSeconds
	if seconds <= 0 {
		seconds = DefaultShutdownTimeoutSecs
	}
	return time.Duration(seconds) * time.Second
}
