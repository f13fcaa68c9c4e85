// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package asynchttp

import (
	"errors"
	"log/slog"

	"github.com/gogama/asynchttp/conn"
	"github.com/gogama/asynchttp/ids"
	"github.com/gogama/asynchttp/retry"
	"github.com/gogama/asynchttp/timeout"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"
)

// Option is a functional option for configuring a Request.
type Option func(*options) error

type options struct {
	logger     *slog.Logger
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	ids        ids.Generator
	connIDs    ids.Generator
	timeouts   timeout.Policy
	retries    retry.Policy
	limiter    *rate.Limiter
	dialer     conn.Dialer
	hooks      []conn.CloseHook
	handlers   *HandlerGroup
}

func defaultOptions() options {
	return options{
		logger:   slog.Default(),
		tracer:   noop.NewTracerProvider().Tracer("github.com/gogama/asynchttp"),
		ids:      ids.Requests,
		connIDs:  ids.Connections,
		timeouts: timeout.DefaultPolicy,
		retries:  retry.Never,
	}
}

func (o *options) apply(opts []Option) error {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return err
		}
	}
	return nil
}

// WithLogger sets the logger the request, its connection, and its
// resolver log to. Default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(o *options) error {
		if log == nil {
			return errors.New("asynchttp: logger must not be nil")
		}
		o.logger = log
		return nil
	}
}

// WithTracer sets the tracer which records one span per exchange.
// Default is a no-op tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		if tracer == nil {
			return errors.New("asynchttp: tracer must not be nil")
		}
		o.tracer = tracer
		return nil
	}
}

// WithPropagator sets the propagator which injects the exchange's
// trace context into the request header. Default is the global
// propagator at the time of each Send.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(o *options) error {
		if p == nil {
			return errors.New("asynchttp: propagator must not be nil")
		}
		o.propagator = p
		return nil
	}
}

// WithIDs sets the generators request and connection identifiers are
// taken from. A nil generator keeps the default, ids.Requests or
// ids.Connections.
func WithIDs(requests, connections ids.Generator) Option {
	return func(o *options) error {
		if requests != nil {
			o.ids = requests
		}
		if connections != nil {
			o.connIDs = connections
		}
		return nil
	}
}

// WithTimeoutPolicy sets the inactivity timeout policy. Default is
// timeout.DefaultPolicy.
func WithTimeoutPolicy(p timeout.Policy) Option {
	return func(o *options) error {
		if p == nil {
			return errors.New("asynchttp: timeout policy must not be nil")
		}
		o.timeouts = p
		return nil
	}
}

// WithRetryPolicy sets the policy consulted when every endpoint refuses
// a connection. Default is retry.Never.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *options) error {
		if p == nil {
			return errors.New("asynchttp: retry policy must not be nil")
		}
		o.retries = p
		return nil
	}
}

// WithConnectLimiter throttles connect attempts through l. Requests
// sharing a limiter share its budget. Default is no throttling.
func WithConnectLimiter(l *rate.Limiter) Option {
	return func(o *options) error {
		if l == nil {
			return errors.New("asynchttp: limiter must not be nil")
		}
		o.limiter = l
		return nil
	}
}

// WithDialer sets the dialer connections are opened with. Default is a
// zero net.Dialer.
func WithDialer(d conn.Dialer) Option {
	return func(o *options) error {
		if d == nil {
			return errors.New("asynchttp: dialer must not be nil")
		}
		o.dialer = d
		return nil
	}
}

// WithCloseHook registers a hook told the identifier of each connection
// the request closes, or drops with End.
func WithCloseHook(h conn.CloseHook) Option {
	return func(o *options) error {
		if h == nil {
			return errors.New("asynchttp: close hook must not be nil")
		}
		o.hooks = append(o.hooks, h)
		return nil
	}
}

// WithHandlers installs a group of state handlers which run, before
// the state change callback, at every state transition.
func WithHandlers(g *HandlerGroup) Option {
	return func(o *options) error {
		o.handlers = g
		return nil
	}
}

func (o *options) connOptions() []conn.Option {
	opts := []conn.Option{
		conn.WithLogger(o.logger),
		conn.WithIDs(o.connIDs),
	}
	if o.dialer != nil {
		opts = append(opts, conn.WithDialer(o.dialer))
	}
	if o.limiter != nil {
		opts = append(opts, conn.WithLimiter(o.limiter))
	}
	for _, h := range o.hooks {
		opts = append(opts, conn.WithCloseHook(h))
	}
	return opts
}
