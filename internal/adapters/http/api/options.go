package api

import "github.com/okian/revsched/pkg/logger"

const (
	defaultMaxReviewLimit  = 100
	defaultMaxRequestBytes = 4 << 20
)

type serverConfig struct {
	maxReviewLimit  int
	maxRequestBytes int64
	logger          logger.Logger
}

// Option configures a Server.
type Option func(*serverConfig)

// WithMaxReviewLimit caps the limit accepted by GET /v1/review.
func WithMaxReviewLimit(n int) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxReviewLimit = n
		}
	}
}

// WithMaxRequestBytes caps document request bodies.
func WithMaxRequestBytes(n int64) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxRequestBytes = n
		}
	}
}

// WithLogger sets the logger used for server-side failures.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
