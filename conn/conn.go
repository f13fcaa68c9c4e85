// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package conn provides Conn, one TCP connection driven from a reactor
// loop.
//
// Every operation which can block (connecting, writing, reading) is
// started from the loop and returns immediately. The blocking work
// happens on a helper goroutine, and the completion handler is posted
// back to the loop. Handlers therefore run one at a time, in the order
// their operations completed, on the loop goroutine.
//
// A Conn has two buffers. Bytes staged in the write buffer returned by
// Input are sent by Write. Bytes received by the read operations
// accumulate in the read buffer across partial reads, and stay there
// until taken with Drain.
package conn

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"sync"

	"github.com/gogama/asynchttp/ids"
	"github.com/gogama/asynchttp/reactor"
	"golang.org/x/time/rate"
)

var (
	// ErrNoEndpoints is reported by Connect when given no endpoints.
	ErrNoEndpoints = errors.New("asynchttp/conn: no endpoints to connect to")
	// ErrAlreadyConnected is reported by Connect on an open
	// connection.
	ErrAlreadyConnected = errors.New("asynchttp/conn: already connected")
	// ErrTimeout is the error an inactivity timer fires with. It
	// reports true from a Timeout method, like net.Error timeouts do.
	ErrTimeout error = timeoutError{}
)

type timeoutError struct{}

func (timeoutError) Error() string { return "asynchttp/conn: inactivity timeout" }
func (timeoutError) Timeout() bool { return true }

// A Conn is one client connection. Create connections with New.
//
// Connect, Write, the read operations, Timeout, and CancelTimeout are
// meant to be called from the loop goroutine. Close, IsOpen, CancelRead,
// and the accessors are safe to call from any goroutine.
type Conn struct {
	loop    *reactor.Loop
	id      uint64
	logger  *slog.Logger
	dialer  Dialer
	limiter *rate.Limiter
	hooks   []CloseHook

	out bytes.Buffer

	mu       sync.Mutex
	nc       net.Conn
	endpoint netip.AddrPort
	ctx      context.Context
	cancel   context.CancelFunc
	timer    *timerState

	// readMu serializes the goroutines doing blocking reads.
	readMu sync.Mutex
	// bufMu guards in and gen.
	bufMu sync.Mutex
	in    bytes.Buffer
	gen   uint64
}

// New returns a closed connection whose completion handlers run on
// loop.
func New(loop *reactor.Loop, opts ...Option) *Conn {
	if loop == nil {
		panic("asynchttp/conn: nil loop")
	}

	o := options{
		logger: slog.Default(),
		ids:    ids.Connections,
		dialer: &net.Dialer{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Conn{
		loop:    loop,
		id:      o.ids.Next(),
		dialer:  o.dialer,
		limiter: o.limiter,
		hooks:   o.hooks,
	}
	c.logger = o.logger.With("connection", c.id)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// ID returns the connection identifier.
func (c *Conn) ID() uint64 {
	return c.id
}

// IsOpen reports whether the connection holds an open socket.
func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nc != nil
}

// Endpoint returns the endpoint the connection was last connected to,
// or the value given to SetEndpoint.
func (c *Conn) Endpoint() netip.AddrPort {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

// SetEndpoint records ep as the connection's endpoint.
func (c *Conn) SetEndpoint(ep netip.AddrPort) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoint = ep
}

// IsV6 reports whether the connection's endpoint is an IPv6 address.
func (c *Conn) IsV6() bool {
	a := c.Endpoint().Addr()
	return a.Is6() && !a.Is4In6()
}

// Input returns the write buffer. Bytes written to it are sent by the
// next Write.
func (c *Conn) Input() *bytes.Buffer {
	return &c.out
}

// Buffered returns the number of bytes in the read buffer.
func (c *Conn) Buffered() int {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	return c.in.Len()
}

// Drain removes and returns every byte in the read buffer.
func (c *Conn) Drain() []byte {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	if c.in.Len() == 0 {
		return nil
	}
	b := append([]byte(nil), c.in.Bytes()...)
	c.in.Reset()
	return b
}

// Close closes the socket, aborts a connect in progress, and cancels
// the inactivity timer. Pending reads and writes complete with an error
// satisfying errors.Is(err, net.ErrClosed). Close hooks run if the
// connection was open. Closing a closed connection does nothing.
//
// The connection can be connected again after Close.
func (c *Conn) Close() {
	c.mu.Lock()
	nc := c.nc
	c.nc = nil
	c.cancel()
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.stopTimerLocked()
	c.mu.Unlock()

	if nc == nil {
		return
	}
	if err := nc.Close(); err != nil {
		c.logger.Debug("close error", "err", err)
	}
	c.logger.Debug("connection closed")
	for _, h := range c.hooks {
		h(c.id)
	}
}
