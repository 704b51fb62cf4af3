package lifecycle

import (
	"time"

	"github.com/sailorworks/verigrant/pkg/logger"
)

// Option applies a configuration option to the Lifecycle.
type Option func(*Lifecycle)

// WithPlaceholderAvatar sets the asset shown while a placement resolves.
func WithPlaceholderAvatar(asset string) Option {
	return func(l *Lifecycle) {
		if asset != "" {
			l.avatar = asset
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(l *Lifecycle) {
		if log != nil {
			l.logger = log
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) {
		if now != nil {
			l.nowFunc = now
		}
	}
}
