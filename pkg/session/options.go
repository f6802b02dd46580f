package session

import "go.uber.org/zap"

// Option configures a Coordinator or a WebSocketTransport.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sends session diagnostics to logger. Sessions log nothing by
// default.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
