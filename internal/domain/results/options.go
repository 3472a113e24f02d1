package results

import "github.com/okian/studyroom/pkg/logger"

// Option applies a configuration option to the Cache.
type Option func(*Cache)

// WithLimit bounds the number of retained items.
func WithLimit(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithLogger sets a custom logger for the cache.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}
