package bridge

import "go.uber.org/zap"

type config struct {
	logger  *zap.Logger
	ptrSize uint32
}

// Option configures a Bridge.
type Option func(*config)

// WithLogger sets the logger for one bridge.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPointerSize sets the native pointer width in bytes. Only 4 and 8 are
// meaningful; the default is 8.
func WithPointerSize(n uint32) Option {
	return func(c *config) {
		c.ptrSize = n
	}
}
