// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package conn

import (
	"context"
	"log/slog"
	"net"

	"github.com/gogama/asynchttp/ids"
	"golang.org/x/time/rate"
)

// A Dialer opens network connections. *net.Dialer satisfies Dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// A CloseHook is told the identifier of a connection when the
// connection is closed.
type CloseHook func(id uint64)

// An Option configures a Conn.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	ids     ids.Generator
	dialer  Dialer
	limiter *rate.Limiter
	hooks   []CloseHook
}

// WithLogger sets the logger used for connection events. Default is
// slog.Default().
func WithLogger(log *slog.Logger) Option {
	return Option(func(opts *options) {
		opts.logger = log
	})
}

// WithIDs sets the generator the connection identifier is taken from.
// Default is ids.Connections.
func WithIDs(g ids.Generator) Option {
	return Option(func(opts *options) {
		opts.ids = g
	})
}

// WithDialer sets the dialer used by Connect. Default is a zero
// net.Dialer.
func WithDialer(d Dialer) Option {
	return Option(func(opts *options) {
		opts.dialer = d
	})
}

// WithLimiter throttles connect attempts: Connect waits on l before
// dialing each endpoint. Default is no throttling.
func WithLimiter(l *rate.Limiter) Option {
	return Option(func(opts *options) {
		opts.limiter = l
	})
}

// WithCloseHook registers a hook to run when an open connection is
// closed. Hooks run in registration order, on the goroutine calling
// Close.
func WithCloseHook(h CloseHook) Option {
	return Option(func(opts *options) {
		opts.hooks = append(opts.hooks, h)
	})
}
