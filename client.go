// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package asynchttp

import (
	"log/slog"
	"net"
	"net/netip"
	"sync"

	"github.com/gogama/asynchttp/conn"
	"github.com/gogama/asynchttp/message"
	"github.com/gogama/asynchttp/reactor"
	"github.com/gogama/asynchttp/resolver"
	"github.com/gogama/asynchttp/retry"
	"github.com/gogama/asynchttp/timeout"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// A DoneFunc receives the final response of a request exchange.
type DoneFunc func(resp message.Response)

// A Client creates Requests sharing one configuration and one cache of
// name resolutions. Apart from Loop, its zero value is a valid
// configuration.
//
// The zero value client logs to slog.Default(), records no traces,
// uses timeout.DefaultPolicy as the timeout policy and retry.Never as
// the retry policy, and installs no state handlers.
//
// A resolution is shared by every request the client creates for the
// same host and service, until it fails or the client is closed.
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	// Loop is the reactor loop every request runs on. It must not be
	// nil.
	Loop *reactor.Loop
	// Logger is the logger requests log to.
	//
	// If Logger is nil, slog.Default() is used.
	Logger *slog.Logger
	// Tracer records one span per exchange.
	//
	// If Tracer is nil, no spans are recorded.
	Tracer trace.Tracer
	// TimeoutPolicy specifies the inactivity timeout of each state of
	// an exchange.
	//
	// If TimeoutPolicy is nil, timeout.DefaultPolicy is used.
	TimeoutPolicy timeout.Policy
	// RetryPolicy decides whether to try connecting again when every
	// endpoint refused, and how long to wait first.
	//
	// If RetryPolicy is nil, retry.Never is used.
	RetryPolicy retry.Policy
	// Handlers allows custom handler chains to be invoked at each state
	// transition of every request.
	//
	// If Handlers is nil, no custom handlers will be run.
	Handlers *HandlerGroup
	// ConnectLimiter throttles the connect attempts of every request.
	//
	// If ConnectLimiter is nil, connects are not throttled.
	ConnectLimiter *rate.Limiter
	// Dialer opens connections.
	//
	// If Dialer is nil, a zero net.Dialer is used.
	Dialer conn.Dialer
	// Lookup resolves host and service names.
	//
	// If Lookup is nil, resolver.Lookup is used.
	Lookup resolver.LookupFunc

	mu        sync.Mutex
	resolvers map[string]*resolver.Resolver
}

// NewRequest returns a request to service on host, sharing the client's
// resolution of host and service.
func (c *Client) NewRequest(host, service string) (*Request, error) {
	return NewRequestWithResolver(c.loop(), c.resolver(host, service), c.options()...)
}

// NewRequestWithEndpoints returns a request to already resolved
// endpoints.
func (c *Client) NewRequestWithEndpoints(endpoints []netip.AddrPort) (*Request, error) {
	return NewRequestWithEndpoints(c.loop(), endpoints, c.options()...)
}

// Get sends a GET request for target to service on host, and calls done
// with the final response. The request is returned once sent.
func (c *Client) Get(host, service, target string, done DoneFunc) (*Request, error) {
	return c.do("GET", host, service, target, "", nil, done)
}

// Head sends a HEAD request for target to service on host, and calls
// done with the final response. The request is returned once sent.
//
// A response to HEAD has no body. Unless the server sends Content-Length:
// 0 or closes the connection, the exchange only ends when the connection
// is idle for longer than the timeout policy allows.
func (c *Client) Head(host, service, target string, done DoneFunc) (*Request, error) {
	return c.do("HEAD", host, service, target, "", nil, done)
}

// Post sends a POST request with the given content type and body for
// target to service on host, and calls done with the final response.
// The request is returned once sent.
func (c *Client) Post(host, service, target, contentType string, body []byte, done DoneFunc) (*Request, error) {
	return c.do("POST", host, service, target, contentType, body, done)
}

// Close closes every cached resolution. Requests created earlier which
// are still waiting for one end with reactor.ErrAborted.
func (c *Client) Close() {
	c.mu.Lock()
	resolvers := c.resolvers
	c.resolvers = nil
	c.mu.Unlock()

	for _, res := range resolvers {
		res.Close()
	}
}

func (c *Client) do(method, host, service, target, contentType string, body []byte, done DoneFunc) (*Request, error) {
	r, err := c.NewRequest(host, service)
	if err != nil {
		return nil, err
	}
	if err = r.SetRequestLine(message.RequestLine{Method: method, Target: target}); err != nil {
		return nil, err
	}
	if err = r.SetHeaderField("Host", HostHeader(host, service)); err != nil {
		return nil, err
	}
	if contentType != "" {
		if err = r.SetHeaderField("Content-Type", contentType); err != nil {
			return nil, err
		}
	}
	r.SetBody(body)
	if done != nil {
		r.OnStateChange(func(s message.State, resp message.Response) {
			if s == message.Done {
				done(resp)
			}
		})
	}
	r.Send()
	return r, nil
}

func (c *Client) loop() *reactor.Loop {
	if c.Loop == nil {
		panic("asynchttp: nil loop")
	}
	return c.Loop
}

func (c *Client) resolver(host, service string) *resolver.Resolver {
	key := net.JoinHostPort(host, service)

	c.mu.Lock()
	defer c.mu.Unlock()
	if res, ok := c.resolvers[key]; ok {
		if !res.Completed() || res.Err() == nil {
			return res
		}
	}

	opts := []resolver.Option{resolver.WithLogger(c.logger())}
	if c.Lookup != nil {
		opts = append(opts, resolver.WithLookup(c.Lookup))
	}
	res := resolver.New(c.loop(), host, service, opts...)
	if c.resolvers == nil {
		c.resolvers = make(map[string]*resolver.Resolver)
	}
	c.resolvers[key] = res
	return res
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Client) options() []Option {
	opts := []Option{WithLogger(c.logger())}
	if c.Tracer != nil {
		opts = append(opts, WithTracer(c.Tracer))
	}
	if c.TimeoutPolicy != nil {
		opts = append(opts, WithTimeoutPolicy(c.TimeoutPolicy))
	}
	if c.RetryPolicy != nil {
		opts = append(opts, WithRetryPolicy(c.RetryPolicy))
	}
	if c.Handlers != nil {
		opts = append(opts, WithHandlers(c.Handlers))
	}
	if c.ConnectLimiter != nil {
		opts = append(opts, WithConnectLimiter(c.ConnectLimiter))
	}
	if c.Dialer != nil {
		opts = append(opts, WithDialer(c.Dialer))
	}
	return opts
}

// HostHeader returns the Host field value for service on host. The
// default HTTP port is left implicit.
func HostHeader(host, service string) string {
	if service == "80" || service == "http" {
		return host
	}
	return net.JoinHostPort(host, service)
}
