// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package asynchttp

import (
	"bytes"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/gogama/asynchttp/conn"
	"github.com/gogama/asynchttp/message"
	"github.com/gogama/asynchttp/reactor"
	"github.com/gogama/asynchttp/resolver"
	"github.com/gogama/asynchttp/retry"
	"github.com/gogama/asynchttp/timeout"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// A StatusFunc is told the status code once the status line of a
// response is parsed.
type StatusFunc func(code int)

// A BodyFunc is handed each run of response body bytes as it is
// parsed. The slice is owned by the callee.
type BodyFunc func(chunk []byte)

// A StateFunc is told of every state transition of an exchange, with a
// snapshot of the response as it stands.
type StateFunc func(s message.State, r message.Response)

// stream is the connection capability a Request drives. *conn.Conn
// implements it.
type stream interface {
	ID() uint64
	IsOpen() bool
	Connect(endpoints []netip.AddrPort, done conn.ConnectHandler)
	Input() *bytes.Buffer
	Write(done conn.IOHandler)
	ReadUntil(delim []byte, done conn.IOHandler)
	ReadExactly(n int, done conn.IOHandler)
	ReadAtLeast(n int, done conn.IOHandler)
	CancelRead()
	Drain() []byte
	Timeout(d time.Duration, cb func(error))
	CancelTimeout()
	Close()
}

// A Request drives HTTP/1.1 exchanges with one server over one
// connection, on a reactor loop.
//
// Configure the request with the setters and register callbacks, then
// call Send. Each Send starts one exchange, which moves through the
// states Created, Sending, Receiving, HeaderReceived, Receiving, and
// Done, reporting every transition to the state change callback. Done
// is reported exactly once per exchange, whether it succeeded or not.
//
// The setters, the callback registration methods, Send, End, and the
// accessors are safe to call from any goroutine. Callbacks run on the
// loop goroutine, and must not block.
type Request struct {
	loop     *reactor.Loop
	id       uint64
	res      *resolver.Resolver
	logger   *slog.Logger
	tracer   trace.Tracer
	prop     propagation.TextMapPropagator
	timeouts timeout.Policy
	retries  retry.Policy
	handlers *HandlerGroup

	newStream func() stream

	mu       sync.Mutex
	line     message.RequestLine
	fields   message.Fields
	ct       message.ConnectionType
	body     []byte
	onStatus StatusFunc
	onBody   BodyFunc
	onState  StateFunc
	state    message.State
	stream   stream

	// Loop only.
	seq uint64
	x   *exchange
}

// NewRequest returns a request to service on host. Resolution of host
// starts immediately.
//
// Parameter service is a port number or a service name such as "http".
func NewRequest(loop *reactor.Loop, host, service string, opts ...Option) (*Request, error) {
	o := defaultOptions()
	if err := o.apply(opts); err != nil {
		return nil, err
	}
	if loop == nil {
		panic("asynchttp: nil loop")
	}
	res := resolver.New(loop, host, service, resolver.WithLogger(o.logger))
	return newRequest(loop, res, &o), nil
}

// NewRequestWithResolver returns a request to the endpoints res
// resolves. The resolver may be shared by several requests.
func NewRequestWithResolver(loop *reactor.Loop, res *resolver.Resolver, opts ...Option) (*Request, error) {
	if res == nil {
		panic("asynchttp: nil resolver")
	}
	o := defaultOptions()
	if err := o.apply(opts); err != nil {
		return nil, err
	}
	return newRequest(loop, res, &o), nil
}

// NewRequestWithEndpoints returns a request to already resolved
// endpoints. They are tried in order.
func NewRequestWithEndpoints(loop *reactor.Loop, endpoints []netip.AddrPort, opts ...Option) (*Request, error) {
	return NewRequestWithResolver(loop, resolver.FromEndpoints(endpoints), opts...)
}

func newRequest(loop *reactor.Loop, res *resolver.Resolver, o *options) *Request {
	if loop == nil {
		panic("asynchttp: nil loop")
	}

	r := &Request{
		loop:     loop,
		id:       o.ids.Next(),
		res:      res,
		tracer:   o.tracer,
		prop:     o.propagator,
		timeouts: o.timeouts,
		retries:  o.retries,
		handlers: o.handlers,
		state:    message.Created,
	}
	r.logger = o.logger.With("request", r.id)
	connOpts := o.connOptions()
	r.newStream = func() stream {
		return conn.New(loop, connOpts...)
	}
	return r
}

// ID returns the request identifier.
func (r *Request) ID() uint64 {
	return r.id
}

// SetRequestLine sets the method, target, and version sent by the next
// exchange.
func (r *Request) SetRequestLine(line message.RequestLine) error {
	if err := line.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.line = line
	return nil
}

// SetHeaderField sets a header field sent by the next exchange. Fields
// are sent in the order first set. See message.Fields.Set for the
// errors returned.
func (r *Request) SetHeaderField(name, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fields.Set(name, value)
}

// SetConnectionType sets the connection directive. Unset and invalid
// directives are sent as message.Close.
//
// SetConnectionType panics if ct is message.Upgrade, which is not
// supported.
func (r *Request) SetConnectionType(ct message.ConnectionType) {
	if ct == message.Upgrade {
		panic("asynchttp: upgrade connection directive not supported")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ct = ct
}

// SetBody sets the request body. A non-empty body is sent with a
// Content-Length field.
func (r *Request) SetBody(body []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.body = append([]byte(nil), body...)
}

// SetLogger replaces the request's logger.
func (r *Request) SetLogger(log *slog.Logger) {
	if log == nil {
		panic("asynchttp: nil logger")
	}
	r.loop.Post(func() {
		r.logger = log.With("request", r.id)
	})
}

// Build returns the request exactly as the next exchange will send it.
func (r *Request) Build() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return message.Build(r.line, &r.fields, r.ct, r.body)
}

// OnStatus registers the status callback. A nil callback removes it.
func (r *Request) OnStatus(f StatusFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStatus = f
}

// OnBody registers the body callback. A nil callback removes it.
func (r *Request) OnBody(f BodyFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onBody = f
}

// OnStateChange registers the state change callback. A nil callback
// removes it.
func (r *Request) OnStateChange(f StateFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onState = f
}

// State returns the state of the most recent exchange.
func (r *Request) State() message.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Connection returns the connection the request currently owns, or nil.
func (r *Request) Connection() *conn.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, _ := r.stream.(*conn.Conn)
	return c
}

// Send starts a new exchange on the loop and returns immediately.
//
// If the request owns an open connection, the exchange reuses it and
// skips resolution and connecting. If an earlier exchange is still in
// progress, it is ended first with reactor.ErrAborted.
func (r *Request) Send() {
	r.loop.Post(r.start)
}

// End drops the request's connection, closing it. An exchange in
// progress ends once its pending operation reports the closure.
func (r *Request) End() {
	r.mu.Lock()
	s := r.stream
	r.stream = nil
	r.mu.Unlock()

	if s != nil {
		s.Close()
	}
}

func (r *Request) currentStream() stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stream
}

func (r *Request) setStream(s stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stream = s
}

func (r *Request) statusFunc() StatusFunc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onStatus
}

func (r *Request) bodyFunc() BodyFunc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onBody
}
