package router

import (
	"github.com/rs/zerolog"

	"github.com/dshills/stagerouter/internal/router/discovery"
)

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithDefaultPrefix sets the naming-convention prefix used when
// ObserveEventsOn is called without WithPrefix.
func WithDefaultPrefix(prefix string) Option {
	return func(r *Router) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithAnnotations sets the metadata table read during discovery. The
// default is discovery.DefaultAnnotations.
func WithAnnotations(a *discovery.Annotations) Option {
	return func(r *Router) {
		if a != nil {
			r.annotations = a
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// WithInvocationHook adds a hook called after every handler invocation.
func WithInvocationHook(h func(Invocation)) Option {
	return func(r *Router) {
		if h != nil {
			r.hooks = append(r.hooks, h)
		}
	}
}

// ObserveOption configures a single ObserveEventsOn call.
type ObserveOption func(*observeConfig)

type observeConfig struct {
	prefix string
}

// WithPrefix overrides the naming-convention prefix for one observer.
func WithPrefix(prefix string) ObserveOption {
	return func(c *observeConfig) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}
