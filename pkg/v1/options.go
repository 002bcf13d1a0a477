package v1

import "go.uber.org/zap"

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	state   string
	logger  *zap.Logger
	history bool
}

// WithState forces a state directory: "global", "project" or a path.
// The default is the nearest project directory, falling back to global.
func WithState(state string) Option {
	return func(c *clientConfig) {
		c.state = state
	}
}

// WithLogger sets the logger handed to the memory store.
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithoutHistory stops the client from committing memory changes to the
// state directory's history.
func WithoutHistory() Option {
	return func(c *clientConfig) {
		c.history = false
	}
}
