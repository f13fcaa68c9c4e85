// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package asynchttp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/textproto"

	"github.com/gogama/asynchttp/message"
	"github.com/gogama/asynchttp/parser"
	"github.com/gogama/asynchttp/reactor"
	"github.com/gogama/asynchttp/transient"
)

var headerEnd = []byte("\r\n\r\n")

// readHeader reads until the response header block is complete. Bytes
// left over from an interim response are searched first.
func (r *Request) readHeader(x *exchange) {
	if i := bytes.Index(x.pending, headerEnd); i >= 0 {
		r.onHeader(x, i+len(headerEnd))
		return
	}

	x.stage = stageReadHeader
	r.armTimeout(x, message.Receiving)
	if len(x.pending) == 0 {
		x.s.ReadUntil(headerEnd, r.ioHandler(x, evHeaderRead))
	} else {
		x.s.ReadAtLeast(1, r.ioHandler(x, evHeaderRead))
	}
}

func (r *Request) onHeaderRead(x *exchange, err error) {
	x.pending = append(x.pending, x.s.Drain()...)
	if err != nil {
		if len(x.pending) > 0 {
			r.feed(x, x.pending)
			x.pending = nil
		}
		r.finishRead(x, err)
		return
	}
	r.readHeader(x)
}

// onHeader handles a header block occupying the first n pending bytes.
func (r *Request) onHeader(x *exchange, n int) {
	head, carry := x.pending[:n], x.pending[n:]
	x.pending = nil
	r.feed(x, head)

	if code := x.resp.Received; code >= 100 && code < 200 && x.p.Err() == nil {
		r.logger.Debug("interim response", "status", code)
		x.pending = carry
		r.readHeader(x)
		return
	}

	r.setState(x, message.HeaderReceived)
	r.frame(x, carry)
}

// frame decides how the body is delimited. carry holds the bytes read
// past the end of the header block.
func (r *Request) frame(x *exchange, carry []byte) {
	present, _ := x.resp.ContentLength()
	if !present && !x.resp.KeepAlive() && x.ct != message.KeepAlive {
		if len(carry) > 0 {
			r.logger.Debug("discarded bytes after header", "bytes", len(carry))
		}
		r.closeStream(x)
		r.terminate(x, nil)
		return
	}

	x.stage = stageReadBody
	r.setState(x, message.Receiving)
	if len(carry) > 0 {
		x.received += len(carry)
		r.feed(x, carry)
	}
	r.next(x)
}

func (r *Request) next(x *exchange) {
	_, cl := x.resp.ContentLength()
	if x.complete || (cl >= 0 && x.received >= cl) {
		r.finish(x)
		return
	}

	r.armTimeout(x, message.Receiving)
	if cl >= 0 {
		x.s.ReadExactly(cl-x.received, r.ioHandler(x, evBodyRead))
	} else {
		x.s.ReadAtLeast(1, r.ioHandler(x, evBodyRead))
	}
}

func (r *Request) onBodyRead(x *exchange, err error) {
	if b := x.s.Drain(); len(b) > 0 {
		x.received += len(b)
		r.feed(x, b)
	}
	if err != nil {
		r.finishRead(x, err)
		return
	}
	r.next(x)
}

// finishRead ends the exchange after a failed read. The peer closing
// or resetting the connection is a normal end of stream. A connection
// closed locally underneath the read is not.
func (r *Request) finishRead(x *exchange, err error) {
	if !x.s.IsOpen() && !errors.Is(err, reactor.ErrAborted) {
		r.terminate(x, fmt.Errorf("%w: %w", ErrNotConnected, err))
		return
	}
	switch transient.Categorize(err) {
	case transient.EndOfStream, transient.ConnReset:
		if !errors.Is(err, io.EOF) {
			r.logger.Debug("connection reset by peer", "stage", x.stage, "err", err)
		}
		r.closeStream(x)
		r.terminate(x, io.EOF)
	case transient.Aborted:
		r.terminate(x, err)
	default:
		r.closeStream(x)
		r.terminate(x, err)
	}
}

// finish ends an exchange whose body is complete. A connection the
// server keeps alive stays open, and is read speculatively until the
// next exchange claims it.
func (r *Request) finish(x *exchange) {
	if !x.resp.KeepAlive() {
		r.closeStream(x)
		r.terminate(x, nil)
		return
	}

	r.terminate(x, nil)
	if x.s.IsOpen() {
		r.idle(x, x.s)
	}
}

func (r *Request) idle(x *exchange, s stream) {
	s.ReadAtLeast(1, func(err error, n int) {
		if errors.Is(err, reactor.ErrAborted) || r.x != x {
			return
		}
		if b := s.Drain(); len(b) > 0 {
			r.logger.Debug("discarded unsolicited bytes", "connection", s.ID(), "bytes", len(b))
		}
		if err != nil {
			r.logger.Debug("idle connection ended", "connection", s.ID(), "err", err)
			s.Close()
			return
		}
		r.idle(x, s)
	})
}

// feed runs b through the response parser and applies the resulting
// events to the response.
func (r *Request) feed(x *exchange, b []byte) {
	for _, ev := range x.p.Feed(b) {
		if x.complete && ev.Kind != parser.Error {
			continue
		}
		switch ev.Kind {
		case parser.Status:
			x.resp.Received = ev.Code
			x.resp.StatusCode = ev.Code
			x.resp.Header = nil
			if f := r.statusFunc(); f != nil {
				f(ev.Code)
			}
		case parser.HeaderField:
			x.field = textproto.CanonicalMIMEHeaderKey(string(ev.Data))
		case parser.HeaderValue:
			if x.resp.Header == nil {
				x.resp.Header = make(map[string]string)
			}
			x.resp.Header[x.field] = string(ev.Data)
		case parser.Body:
			x.resp.Body = append(x.resp.Body, ev.Data...)
			if f := r.bodyFunc(); f != nil {
				f(ev.Data)
			}
		case parser.MessageComplete:
			if x.resp.Received >= 200 {
				x.complete = true
			}
		case parser.Error:
			r.logger.Warn("response parse error", "stage", "parse", "err", ev.Err)
		}
	}
}
