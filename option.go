package x402

import (
	"time"

	"github.com/walrus-x402/x402/logger"
	"github.com/walrus-x402/x402/metrics"
)

type Option func(*X402)

func WithLogger(l logger.Logger) Option {
	return func(x *X402) {
		x.logger = logger.OrNoop(l)
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(x *X402) {
		x.metrics = metrics.OrNoop(r)
	}
}

// WithTimeout overrides the per-verification timeout from the config.
func WithTimeout(t time.Duration) Option {
	return func(x *X402) {
		x.timeout = t
	}
}
