// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package resolver turns a host and service into the list of TCP
// endpoints a request may connect to.
//
// A Resolver performs its lookup exactly once, when it is created, and
// caches the outcome. Any number of callbacks can be registered to
// receive the outcome. A callback registered before the lookup
// completes is queued and invoked, in registration order, on the
// reactor loop when the lookup completes; a callback registered after
// completion is invoked immediately with the cached outcome. Either way
// each callback is invoked exactly once.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"

	"github.com/gogama/asynchttp/reactor"
)

// ErrNoEndpoints is reported when a lookup succeeds but yields no
// addresses.
var ErrNoEndpoints = errors.New("asynchttp/resolver: no endpoints")

// A Callback receives the outcome of a lookup. If err is non-nil,
// endpoints is empty.
type Callback func(err error, endpoints []netip.AddrPort)

// A LookupFunc resolves host and service into endpoints. It may block,
// and should return promptly once ctx is done.
type LookupFunc func(ctx context.Context, host, service string) ([]netip.AddrPort, error)

// An Option configures a Resolver.
type Option func(*options)

type options struct {
	lookup LookupFunc
	logger *slog.Logger
}

// WithLookup sets the function used to perform the lookup. Default is
// Lookup.
func WithLookup(fn LookupFunc) Option {
	return Option(func(opts *options) {
		opts.lookup = fn
	})
}

// WithLogger sets the logger used to report lookup outcomes. Default is
// slog.Default().
func WithLogger(log *slog.Logger) Option {
	return Option(func(opts *options) {
		opts.logger = log
	})
}

// A Resolver holds the cached outcome of one lookup.
//
// All methods are safe for concurrent use by multiple goroutines.
type Resolver struct {
	mu        sync.Mutex
	completed bool
	closed    bool
	err       error
	endpoints []netip.AddrPort
	callbacks []Callback
	cancel    context.CancelFunc
}

// New starts resolving host and service and returns immediately. The
// outcome is delivered on loop.
//
// Parameter service may be a port number or a service name such as
// "http".
func New(loop *reactor.Loop, host, service string, opts ...Option) *Resolver {
	if loop == nil {
		panic("asynchttp/resolver: nil loop")
	}

	o := options{
		lookup: Lookup,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Resolver{cancel: cancel}
	logger := o.logger.With("host", host, "service", service)

	go func() {
		endpoints, err := o.lookup(ctx, host, service)
		if err == nil && len(endpoints) == 0 {
			err = fmt.Errorf("%w: %s:%s", ErrNoEndpoints, host, service)
		}
		if err != nil {
			endpoints = nil
			logger.Error("resolve failed", "err", err)
		} else {
			for _, ep := range endpoints {
				logger.Debug("resolved endpoint", "endpoint", ep, "family", family(ep))
			}
		}
		loop.Post(func() {
			r.complete(err, endpoints)
		})
	}()

	return r
}

// FromEndpoints returns a Resolver which is already completed with the
// given endpoints and no error.
func FromEndpoints(endpoints []netip.AddrPort) *Resolver {
	return &Resolver{
		completed: true,
		endpoints: append([]netip.AddrPort(nil), endpoints...),
		cancel:    func() {},
	}
}

// AddCallback registers cb to receive the outcome. If the lookup is
// complete, cb is invoked before AddCallback returns. If the Resolver
// was closed before the lookup completed, cb is invoked immediately with
// reactor.ErrAborted.
func (r *Resolver) AddCallback(cb Callback) {
	if cb == nil {
		panic("asynchttp/resolver: nil callback")
	}

	r.mu.Lock()
	switch {
	case r.completed:
		err, endpoints := r.err, r.copyEndpoints()
		r.mu.Unlock()
		cb(err, endpoints)
	case r.closed:
		r.mu.Unlock()
		cb(reactor.ErrAborted, nil)
	default:
		r.callbacks = append(r.callbacks, cb)
		r.mu.Unlock()
	}
}

// Close abandons the lookup if it is still running. Every queued
// callback is invoked with reactor.ErrAborted and no endpoints, and the
// lookup outcome, when it arrives, is discarded. Close has no effect on
// a completed Resolver.
func (r *Resolver) Close() {
	r.mu.Lock()
	if r.completed || r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	pending := r.callbacks
	r.callbacks = nil
	r.mu.Unlock()

	r.cancel()
	for _, cb := range pending {
		cb(reactor.ErrAborted, nil)
	}
}

// Completed reports whether the lookup has completed.
func (r *Resolver) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

// Err returns the error the lookup completed with, if any.
func (r *Resolver) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Endpoints returns a copy of the resolved endpoints.
func (r *Resolver) Endpoints() []netip.AddrPort {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyEndpoints()
}

func (r *Resolver) complete(err error, endpoints []netip.AddrPort) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.completed = true
	r.err = err
	r.endpoints = endpoints
	pending := r.callbacks
	r.callbacks = nil
	r.mu.Unlock()

	r.cancel()
	for _, cb := range pending {
		cb(err, append([]netip.AddrPort(nil), endpoints...))
	}
}

func (r *Resolver) copyEndpoints() []netip.AddrPort {
	return append([]netip.AddrPort(nil), r.endpoints...)
}

// Lookup resolves host and service with net.DefaultResolver. Numeric
// hosts and ports are converted without consulting DNS.
func Lookup(ctx context.Context, host, service string) ([]netip.AddrPort, error) {
	port, err := net.DefaultResolver.LookupPort(ctx, "tcp", service)
	if err != nil {
		return nil, err
	}
	if port < 0 || port > 0xffff {
		return nil, fmt.Errorf("asynchttp/resolver: port %d out of range", port)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		return []netip.AddrPort{netip.AddrPortFrom(addr.Unmap(), uint16(port))}, nil
	}

	addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	endpoints := make([]netip.AddrPort, 0, len(addrs))
	for _, addr := range addrs {
		endpoints = append(endpoints, netip.AddrPortFrom(addr.Unmap(), uint16(port)))
	}
	return endpoints, nil
}

func family(ep netip.AddrPort) string {
	if ep.Addr().Is4() {
		return "ipv4"
	}
	return "ipv6"
}
