// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package conn

import (
	"bytes"
	"net"
	"time"

	"github.com/gogama/asynchttp/reactor"
)

const readChunk = 4096

// An IOHandler receives the outcome of a write or read: the error, if
// any, and a byte count whose meaning depends on the operation.
type IOHandler func(err error, n int)

// readCond decides when a read is complete. Given the number of bytes
// transferred by the read so far and the whole read buffer, it returns
// the count to report and true when the read is complete, or else the
// most bytes the next socket read may take.
type readCond func(transferred int, buffered []byte) (n, limit int, complete bool)

// Write sends the contents of the write buffer, emptying it, and posts
// done with the number of bytes sent.
func (c *Conn) Write(done IOHandler) {
	if done == nil {
		panic("asynchttp/conn: nil write handler")
	}

	data := append([]byte(nil), c.out.Bytes()...)
	c.out.Reset()

	c.mu.Lock()
	nc := c.nc
	c.mu.Unlock()
	if nc == nil {
		c.loop.Post(func() { done(net.ErrClosed, 0) })
		return
	}

	go func() {
		n, err := nc.Write(data)
		if err != nil {
			c.logger.Debug("write failed", "written", n, "err", err)
		}
		c.loop.Post(func() { done(err, n) })
	}()
}

// ReadUntil reads until the read buffer contains delim, and posts done
// with the length of the buffer prefix ending with the first delim.
// No socket read happens if the buffer already contains delim.
func (c *Conn) ReadUntil(delim []byte, done IOHandler) {
	delim = append([]byte(nil), delim...)
	c.read(func(_ int, buffered []byte) (int, int, bool) {
		if i := bytes.Index(buffered, delim); i >= 0 {
			return i + len(delim), 0, true
		}
		return 0, readChunk, false
	}, done)
}

// ReadExactly reads exactly n more bytes into the read buffer, and
// posts done with n.
func (c *Conn) ReadExactly(n int, done IOHandler) {
	c.read(func(transferred int, _ []byte) (int, int, bool) {
		if transferred >= n {
			return transferred, 0, true
		}
		return 0, n - transferred, false
	}, done)
}

// ReadAtLeast reads at least n more bytes into the read buffer, and
// posts done with the number of bytes read.
func (c *Conn) ReadAtLeast(n int, done IOHandler) {
	c.read(func(transferred int, _ []byte) (int, int, bool) {
		if transferred >= n {
			return transferred, 0, true
		}
		return 0, readChunk, false
	}, done)
}

// CancelRead aborts every read started before the call. Their handlers
// receive reactor.ErrAborted. Bytes they already received stay in the
// read buffer.
func (c *Conn) CancelRead() {
	c.bufMu.Lock()
	c.gen++
	c.bufMu.Unlock()

	c.mu.Lock()
	nc := c.nc
	c.mu.Unlock()
	if nc != nil {
		_ = nc.SetReadDeadline(time.Now())
	}
}

func (c *Conn) read(cond readCond, done IOHandler) {
	if done == nil {
		panic("asynchttp/conn: nil read handler")
	}

	c.mu.Lock()
	nc := c.nc
	c.mu.Unlock()
	if nc == nil {
		c.loop.Post(func() { done(net.ErrClosed, 0) })
		return
	}

	c.bufMu.Lock()
	gen := c.gen
	c.bufMu.Unlock()

	go func() {
		c.readMu.Lock()
		defer c.readMu.Unlock()

		_ = nc.SetReadDeadline(time.Time{})
		n, err := c.fill(nc, gen, cond)
		if err != nil && err != reactor.ErrAborted {
			c.logger.Debug("read ended", "read", n, "err", err)
		}
		c.loop.Post(func() { done(err, n) })
	}()
}

func (c *Conn) fill(nc net.Conn, gen uint64, cond readCond) (int, error) {
	tmp := make([]byte, readChunk)
	transferred := 0
	for {
		c.bufMu.Lock()
		if c.gen != gen {
			c.bufMu.Unlock()
			return transferred, reactor.ErrAborted
		}
		n, limit, complete := cond(transferred, c.in.Bytes())
		c.bufMu.Unlock()
		if complete {
			return n, nil
		}

		if limit > len(tmp) {
			limit = len(tmp)
		}
		m, err := nc.Read(tmp[:limit])

		c.bufMu.Lock()
		c.in.Write(tmp[:m])
		aborted := c.gen != gen
		c.bufMu.Unlock()
		transferred += m

		if err != nil {
			if aborted {
				return transferred, reactor.ErrAborted
			}
			return transferred, err
		}
	}
}
