// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package asynchttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"time"

	"github.com/gogama/asynchttp/message"
	"github.com/gogama/asynchttp/parser"
	"github.com/gogama/asynchttp/reactor"
	"github.com/gogama/asynchttp/retry"
	"github.com/gogama/asynchttp/transient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	stageSend       = "send"
	stageResolve    = "resolve"
	stageConnect    = "connect"
	stageWrite      = "write"
	stageReadHeader = "read:header"
	stageReadBody   = "read:body"
)

// An exchange is one request/response round trip. A Request runs at
// most one exchange at a time; events belonging to an exchange which
// is no longer current, or which already ended, are dropped.
type exchange struct {
	seq       uint64
	s         stream
	p         *parser.Parser
	resp      message.Response
	field     string
	wire      []byte
	ct        message.ConnectionType
	endpoints []netip.AddrPort
	retries   int
	start     time.Time
	span      trace.Span
	wait      *reactor.Timer
	stage     string
	pending   []byte
	received  int
	complete  bool
	done      bool
}

type eventKind int

const (
	evResolved eventKind = iota
	evConnected
	evWritten
	evHeaderRead
	evBodyRead
	evTimedOut
	evRetry
)

var eventNames = []string{
	"resolved",
	"connected",
	"written",
	"headerRead",
	"bodyRead",
	"timedOut",
	"retry",
}

func (k eventKind) String() string {
	if k < 0 || int(k) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[k]
}

type event struct {
	kind      eventKind
	err       error
	n         int
	endpoints []netip.AddrPort
}

// dispatch is the single transition function of the state machine.
// It runs on the loop.
func (r *Request) dispatch(x *exchange, ev event) {
	if r.x != x || x.done {
		r.logger.Debug("stale event dropped", "exchange", x.seq, "event", ev.kind, "err", ev.err)
		return
	}

	switch ev.kind {
	case evResolved:
		r.onResolved(x, ev.err, ev.endpoints)
	case evConnected:
		r.onConnected(x, ev.err)
	case evWritten:
		r.onWritten(x, ev.err)
	case evHeaderRead:
		r.onHeaderRead(x, ev.err)
	case evBodyRead:
		r.onBodyRead(x, ev.err)
	case evTimedOut:
		r.onTimedOut(x, ev.err)
	case evRetry:
		r.onRetry(x, ev.err)
	}
}

func (r *Request) ioHandler(x *exchange, kind eventKind) func(error, int) {
	return func(err error, n int) {
		r.dispatch(x, event{kind: kind, err: err, n: n})
	}
}

func (r *Request) start() {
	if r.x != nil && !r.x.done {
		r.terminate(r.x, reactor.ErrAborted)
		r.closeStream(r.x)
	}

	r.seq++
	x := &exchange{
		seq:   r.seq,
		p:     parser.New(),
		start: time.Now(),
		stage: stageSend,
	}
	r.x = x

	r.mu.Lock()
	line, fields, ct, body := r.line, r.fields.Clone(), r.ct, r.body
	r.mu.Unlock()

	x.ct = ct.Normalize()
	ctx, span := r.tracer.Start(context.Background(), "asynchttp.exchange",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int64("asynchttp.request", int64(r.id)),
			attribute.Int64("asynchttp.exchange", int64(x.seq)),
			attribute.String("http.request.line", line.String()),
		))
	x.span = span
	prop := r.prop
	if prop == nil {
		prop = otel.GetTextMapPropagator()
	}
	prop.Inject(ctx, fieldsCarrier{&fields})

	r.setState(x, message.Created)

	wire, err := message.Build(line, &fields, x.ct, body)
	if err != nil {
		r.terminate(x, err)
		return
	}
	x.wire = wire

	x.stage = stageResolve
	r.res.AddCallback(func(err error, endpoints []netip.AddrPort) {
		r.loop.Post(func() {
			r.dispatch(x, event{kind: evResolved, err: err, endpoints: endpoints})
		})
	})
}

// onResolved runs for every exchange, including one which goes on to
// reuse an open connection, so a failed resolution always ends the
// exchange.
func (r *Request) onResolved(x *exchange, err error, endpoints []netip.AddrPort) {
	if err != nil {
		r.terminate(x, fmt.Errorf("%w: %w", ErrConnectionAborted, err))
		return
	}
	x.endpoints = endpoints

	if s := r.currentStream(); s != nil && s.IsOpen() {
		s.CancelRead()
		if stale := s.Drain(); len(stale) > 0 {
			r.logger.Debug("discarded stale bytes", "connection", s.ID(), "bytes", len(stale))
		}
		x.s = s
		r.logger.Debug("reusing connection", "connection", s.ID())
		r.write(x)
		return
	}
	r.connect(x)
}

func (r *Request) connect(x *exchange) {
	s := r.currentStream()
	if s == nil || !s.IsOpen() {
		s = r.newStream()
		r.setStream(s)
	}
	x.s = s
	x.stage = stageConnect

	if d := r.timeouts.Timeout(message.Created); d > 0 {
		x.wait = r.loop.AfterFunc(d, func(err error) {
			r.dispatch(x, event{kind: evTimedOut, err: err})
		})
	}
	s.Connect(x.endpoints, func(err error, ep netip.AddrPort) {
		r.dispatch(x, event{kind: evConnected, err: err})
	})
}

func (r *Request) onConnected(x *exchange, err error) {
	r.stopWait(x)
	if err == nil {
		r.logger.Debug("connected", "connection", x.s.ID(), "retries", x.retries)
		r.write(x)
		return
	}

	a := &retry.Attempt{
		Retries: x.retries,
		Err:     err,
		Start:   x.start,
		End:     time.Now(),
	}
	if transient.Categorize(err) != transient.Aborted && r.retries.Decide(a) {
		d := r.retries.Wait(a)
		x.retries++
		r.logger.Debug("retrying connect", "stage", stageConnect, "wait", d, "err", err)
		x.wait = r.loop.AfterFunc(d, func(err error) {
			r.dispatch(x, event{kind: evRetry, err: err})
		})
		return
	}
	r.terminate(x, fmt.Errorf("%w: %w", ErrConnectionAborted, err))
}

func (r *Request) onRetry(x *exchange, err error) {
	if err != nil {
		return
	}
	x.wait = nil
	r.connect(x)
}

func (r *Request) write(x *exchange) {
	x.stage = stageWrite
	r.setState(x, message.Sending)
	r.armTimeout(x, message.Sending)
	x.s.Input().Write(x.wire)
	x.s.Write(r.ioHandler(x, evWritten))
}

func (r *Request) onWritten(x *exchange, err error) {
	if err != nil && !errors.Is(err, io.EOF) {
		r.closeStream(x)
		r.terminate(x, fmt.Errorf("%w: %w", ErrNotConnected, err))
		return
	}

	r.setState(x, message.Receiving)
	r.readHeader(x)
}

// onTimedOut handles both the connect timer, which fires with nil, and
// the connection inactivity timer, which fires with ErrTimeout.
func (r *Request) onTimedOut(x *exchange, err error) {
	if errors.Is(err, reactor.ErrAborted) {
		return
	}
	if err == nil {
		x.wait = nil
	}
	r.logger.Debug("inactivity timeout", "stage", x.stage)
	r.terminate(x, ErrTimeout)
	r.closeStream(x)
}

// armTimeout arms the connection inactivity timer for the given state.
func (r *Request) armTimeout(x *exchange, s message.State) {
	if !x.s.IsOpen() {
		return
	}
	d := r.timeouts.Timeout(s)
	if d <= 0 {
		x.s.CancelTimeout()
		return
	}
	x.s.Timeout(d, func(err error) {
		r.dispatch(x, event{kind: evTimedOut, err: err})
	})
}

func (r *Request) stopWait(x *exchange) {
	if x.wait != nil {
		x.wait.Stop()
		x.wait = nil
	}
}

func (r *Request) closeStream(x *exchange) {
	if x.s != nil {
		x.s.Close()
	}
}

// terminate ends the exchange with err. Only the first call for an
// exchange has any effect.
func (r *Request) terminate(x *exchange, err error) {
	if x.done {
		r.logger.Debug("exchange already terminated", "exchange", x.seq, "err", err)
		return
	}
	x.done = true

	r.stopWait(x)
	if x.s != nil {
		x.s.CancelTimeout()
	}
	x.resp.Err = err
	x.resp.StatusCode = outcome(err)

	if x.resp.StatusCode == 0 {
		r.logger.Error("exchange failed", "exchange", x.seq, "stage", x.stage, "err", err)
		x.span.RecordError(err)
		x.span.SetStatus(codes.Error, err.Error())
	} else {
		r.logger.Debug("exchange done", "exchange", x.seq, "status", x.resp.Received, "body", len(x.resp.Body), "err", err)
	}
	x.span.SetAttributes(
		attribute.Int("http.response.status_code", x.resp.Received),
		attribute.Int("asynchttp.outcome", x.resp.StatusCode),
		attribute.Int("asynchttp.body_bytes", len(x.resp.Body)),
	)

	r.setState(x, message.Done)
	x.span.End()
}

// setState records s and reports it to the installed handlers and
// then the state change callback.
func (r *Request) setState(x *exchange, s message.State) {
	r.mu.Lock()
	r.state = s
	cb := r.onState
	r.mu.Unlock()

	x.span.AddEvent(s.Name())
	snap := x.resp.Clone()
	r.handlers.run(s, &snap)
	if cb != nil {
		cb(s, snap)
	}
}
