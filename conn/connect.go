// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package conn

import (
	"context"
	"net"
	"net/netip"
)

// A ConnectHandler receives the outcome of Connect: the endpoint
// connected to, or the error from the last endpoint tried.
type ConnectHandler func(err error, ep netip.AddrPort)

// Connect tries each endpoint in order until one accepts a connection,
// and then posts done to the loop. If Close is called while Connect is
// in progress, done receives an error satisfying
// errors.Is(err, net.ErrClosed).
func (c *Conn) Connect(endpoints []netip.AddrPort, done ConnectHandler) {
	if done == nil {
		panic("asynchttp/conn: nil connect handler")
	}

	c.mu.Lock()
	open := c.nc != nil
	ctx := c.ctx
	c.mu.Unlock()

	if open {
		c.loop.Post(func() { done(ErrAlreadyConnected, netip.AddrPort{}) })
		return
	}
	if len(endpoints) == 0 {
		c.loop.Post(func() { done(ErrNoEndpoints, netip.AddrPort{}) })
		return
	}

	endpoints = append([]netip.AddrPort(nil), endpoints...)
	go func() {
		ep, err := c.dial(ctx, endpoints)
		c.loop.Post(func() { done(err, ep) })
	}()
}

func (c *Conn) dial(ctx context.Context, endpoints []netip.AddrPort) (netip.AddrPort, error) {
	var err error
	for _, ep := range endpoints {
		if c.limiter != nil {
			if err = c.limiter.Wait(ctx); err != nil {
				break
			}
		}

		var nc net.Conn
		nc, err = c.dialer.DialContext(ctx, "tcp", ep.String())
		if err != nil {
			c.logger.Debug("connect attempt failed", "endpoint", ep, "err", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if tcp, ok := nc.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		c.mu.Lock()
		if ctx.Err() != nil {
			c.mu.Unlock()
			_ = nc.Close()
			return netip.AddrPort{}, net.ErrClosed
		}
		c.nc = nc
		c.endpoint = ep
		c.mu.Unlock()

		c.logger.Debug("connected", "endpoint", ep, "v6", c.IsV6())
		return ep, nil
	}

	if ctx.Err() != nil {
		return netip.AddrPort{}, net.ErrClosed
	}
	c.logger.Error("connect failed", "endpoints", len(endpoints), "err", err)
	return netip.AddrPort{}, err
}
