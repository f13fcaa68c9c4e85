// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package asynchttp

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogama/asynchttp/message"
	"github.com/gogama/asynchttp/timeout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serverInstruction scripts how a loopback server answers the requests
// it reads on one connection.
type serverInstruction struct {
	// Responses holds one response per request, each written as a
	// series of chunks.
	Responses [][]string
	// ChunkPause is slept before each chunk after the first.
	ChunkPause time.Duration
	// Hold keeps the connection open after the last response until
	// the client closes it.
	Hold bool
	// Silent reads the first request and never answers.
	Silent bool
}

type server struct {
	ep       netip.AddrPort
	accepted atomic.Int32
	requests chan *receivedRequest
}

type receivedRequest struct {
	Method string
	Target string
	Host   string
	Header http.Header
	Body   []byte
}

// serve starts a loopback server which follows inst on every
// connection it accepts.
func serve(t *testing.T, inst serverInstruction) *server {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &server{
		ep:       l.Addr().(*net.TCPAddr).AddrPort(),
		requests: make(chan *receivedRequest, 16),
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	var conns []net.Conn
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			nc, err := l.Accept()
			if err != nil {
				return
			}
			srv.accepted.Add(1)
			mu.Lock()
			conns = append(conns, nc)
			mu.Unlock()
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { _ = nc.Close() }()
				srv.handle(nc, inst)
			}()
		}
	}()
	t.Cleanup(func() {
		_ = l.Close()
		mu.Lock()
		for _, nc := range conns {
			_ = nc.Close()
		}
		mu.Unlock()
		wg.Wait()
	})
	return srv
}

func (srv *server) handle(nc net.Conn, inst serverInstruction) {
	br := bufio.NewReader(nc)
	for _, resp := range inst.Responses {
		if !srv.readRequest(br) {
			return
		}
		for i, chunk := range resp {
			if i > 0 && inst.ChunkPause > 0 {
				time.Sleep(inst.ChunkPause)
			}
			if _, err := io.WriteString(nc, chunk); err != nil {
				return
			}
		}
	}
	if inst.Silent {
		srv.readRequest(br)
	}
	if inst.Hold || inst.Silent {
		_, _ = io.Copy(io.Discard, br)
	}
}

func (srv *server) readRequest(br *bufio.Reader) bool {
	req, err := http.ReadRequest(br)
	if err != nil {
		return false
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return false
	}
	// A body is followed by the empty line ending the message.
	if len(body) > 0 && br.Buffered() >= 2 {
		if b, _ := br.Peek(2); string(b) == "\r\n" {
			_, _ = br.Discard(2)
		}
	}
	srv.requests <- &receivedRequest{
		Method: req.Method,
		Target: req.RequestURI,
		Host:   req.Host,
		Header: req.Header,
		Body:   body,
	}
	return true
}

func (srv *server) request(t *testing.T) *receivedRequest {
	select {
	case req := <-srv.requests:
		return req
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timed out waiting for request")
		return nil
	}
}

var fullSequence = []message.State{
	message.Created,
	message.Sending,
	message.Receiving,
	message.HeaderReceived,
	message.Receiving,
	message.Done,
}

func TestScenario_ContentLength(t *testing.T) {
	loop := startLoop(t)
	srv := serve(t, serverInstruction{
		Responses:  [][]string{{"HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\n", "hel", "lo"}},
		ChunkPause: 10 * time.Millisecond,
	})
	var closed []uint64
	var mu sync.Mutex
	r, err := NewRequest(loop, "127.0.0.1", strconv.Itoa(int(srv.ep.Port())),
		WithLogger(discard()),
		WithCloseHook(func(id uint64) {
			mu.Lock()
			defer mu.Unlock()
			closed = append(closed, id)
		}))
	require.NoError(t, err)
	r.SetConnectionType(message.Close)
	rec := record(r)

	r.Send()
	resp := rec.wait(t)

	assert.Equal(t, fullSequence, rec.states())
	assert.Equal(t, message.StatusCompleted, resp.StatusCode)
	assert.Equal(t, 200, resp.Received)
	assert.Equal(t, "hello", string(resp.Body))
	assert.NoError(t, resp.Err)

	req := srv.request(t)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/", req.Target)
	assert.Equal(t, "close", req.Header.Get("Connection"))

	c := r.Connection()
	require.NotNil(t, c)
	assert.False(t, c.IsOpen())
	mu.Lock()
	assert.Equal(t, []uint64{c.ID()}, closed)
	mu.Unlock()
}

func TestScenario_ResolveFailure(t *testing.T) {
	loop := startLoop(t)
	r, err := NewRequest(loop, "example.invalid", "no-such-service", WithLogger(discard()))
	require.NoError(t, err)
	rec := record(r)

	r.Send()
	resp := rec.wait(t)

	assert.Equal(t, []message.State{message.Created, message.Done}, rec.states())
	assert.Equal(t, 0, resp.StatusCode)
	assert.ErrorIs(t, resp.Err, ErrConnectionAborted)
	assert.Empty(t, resp.Body)
}

func TestScenario_ClosedWithoutResponse(t *testing.T) {
	loop := startLoop(t)
	srv := serve(t, serverInstruction{Responses: [][]string{{}}})
	r, err := NewRequestWithEndpoints(loop, []netip.AddrPort{srv.ep}, WithLogger(discard()))
	require.NoError(t, err)
	rec := record(r)

	r.Send()
	resp := rec.wait(t)

	assert.Equal(t, []message.State{message.Created, message.Sending, message.Receiving, message.Done}, rec.states())
	assert.Equal(t, message.StatusCompleted, resp.StatusCode)
	assert.Equal(t, 0, resp.Received)
	assert.Empty(t, resp.Body)
}

func TestScenario_ShortBody(t *testing.T) {
	loop := startLoop(t)
	srv := serve(t, serverInstruction{
		Responses: [][]string{{"HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\nabcd"}},
	})
	r, err := NewRequestWithEndpoints(loop, []netip.AddrPort{srv.ep}, WithLogger(discard()))
	require.NoError(t, err)
	rec := record(r)

	r.Send()
	resp := rec.wait(t)

	assert.Equal(t, fullSequence, rec.states())
	assert.Equal(t, message.StatusCompleted, resp.StatusCode)
	assert.Equal(t, "abcd", string(resp.Body))
	assert.ErrorIs(t, resp.Err, io.EOF)
}

func TestScenario_KeepAliveReuse(t *testing.T) {
	loop := startLoop(t)
	srv := serve(t, serverInstruction{
		Responses: [][]string{
			{"HTTP/1.1 200 OK\r\nConnection: keep-alive\r\nContent-Length: 3\r\n\r\nabc"},
			{"HTTP/1.1 201 Created\r\nConnection: keep-alive\r\nContent-Length: 2\r\n\r\nde"},
		},
		Hold: true,
	})
	r, err := NewRequestWithEndpoints(loop, []netip.AddrPort{srv.ep}, WithLogger(discard()))
	require.NoError(t, err)
	r.SetConnectionType(message.KeepAlive)
	rec := record(r)

	r.Send()
	first := rec.wait(t)
	require.Equal(t, "abc", string(first.Body))
	c := r.Connection()
	require.NotNil(t, c)
	assert.True(t, c.IsOpen())

	r.Send()
	second := rec.wait(t)

	assert.Equal(t, message.StatusCompleted, second.StatusCode)
	assert.Equal(t, 201, second.Received)
	assert.Equal(t, "de", string(second.Body))
	assert.NoError(t, second.Err)
	assert.Same(t, c, r.Connection())
	assert.True(t, c.IsOpen())
	assert.Equal(t, int32(1), srv.accepted.Load())
	assert.Equal(t, append(append([]message.State(nil), fullSequence...), fullSequence...), rec.states())
	assert.Equal(t, "keep-alive", srv.request(t).Header.Get("Connection"))
	assert.Equal(t, "keep-alive", srv.request(t).Header.Get("Connection"))

	r.End()
	assert.False(t, c.IsOpen())
	assert.Nil(t, r.Connection())
}

func TestScenario_KeepAliveAfterServerClose(t *testing.T) {
	loop := startLoop(t)
	srv := serve(t, serverInstruction{
		Responses: [][]string{{"HTTP/1.1 200 OK\r\nConnection: keep-alive\r\nContent-Length: 2\r\n\r\nok"}},
	})
	r, err := NewRequestWithEndpoints(loop, []netip.AddrPort{srv.ep}, WithLogger(discard()))
	require.NoError(t, err)
	r.SetConnectionType(message.KeepAlive)
	rec := record(r)

	r.Send()
	first := rec.wait(t)
	require.Equal(t, "ok", string(first.Body))
	c := r.Connection()
	require.NotNil(t, c)
	require.Eventually(t, func() bool { return !c.IsOpen() }, 5*time.Second, 10*time.Millisecond)

	r.Send()
	second := rec.wait(t)

	assert.Equal(t, "ok", string(second.Body))
	assert.Equal(t, int32(2), srv.accepted.Load())
	assert.NotSame(t, c, r.Connection())
}

func TestScenario_Post(t *testing.T) {
	loop := startLoop(t)
	srv := serve(t, serverInstruction{
		Responses: [][]string{{"HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"}},
	})
	r, err := NewRequestWithEndpoints(loop, []netip.AddrPort{srv.ep}, WithLogger(discard()))
	require.NoError(t, err)
	require.NoError(t, r.SetRequestLine(message.RequestLine{Method: "POST", Target: "/items?x=1"}))
	require.NoError(t, r.SetHeaderField("Content-Type", "text/plain"))
	r.SetBody([]byte("payload"))
	rec := record(r)

	r.Send()
	resp := rec.wait(t)

	assert.Equal(t, message.StatusCompleted, resp.StatusCode)
	assert.Empty(t, resp.Body)
	req := srv.request(t)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/items?x=1", req.Target)
	assert.Equal(t, "text/plain", req.Header.Get("Content-Type"))
	assert.Equal(t, "7", req.Header.Get("Content-Length"))
	assert.Equal(t, "payload", string(req.Body))
}

func TestScenario_Timeout(t *testing.T) {
	loop := startLoop(t)
	srv := serve(t, serverInstruction{Silent: true})
	r, err := NewRequestWithEndpoints(loop, []netip.AddrPort{srv.ep},
		WithLogger(discard()),
		WithTimeoutPolicy(timeout.PerState(0, map[message.State]time.Duration{
			message.Receiving: 50 * time.Millisecond,
		})))
	require.NoError(t, err)
	rec := record(r)

	r.Send()
	resp := rec.wait(t)

	assert.Equal(t, []message.State{message.Created, message.Sending, message.Receiving, message.Done}, rec.states())
	assert.Equal(t, 0, resp.StatusCode)
	assert.ErrorIs(t, resp.Err, ErrTimeout)
	assert.False(t, r.Connection().IsOpen())
}

func TestScenario_EndWhileReceiving(t *testing.T) {
	loop := startLoop(t)
	srv := serve(t, serverInstruction{Silent: true})
	r, err := NewRequestWithEndpoints(loop, []netip.AddrPort{srv.ep}, WithLogger(discard()))
	require.NoError(t, err)
	rec := record(r)

	r.Send()
	srv.request(t)
	require.Eventually(t, func() bool { return r.State() == message.Receiving }, 5*time.Second, 5*time.Millisecond)
	r.End()
	resp := rec.wait(t)

	assert.Equal(t, []message.State{message.Created, message.Sending, message.Receiving, message.Done}, rec.states())
	assert.Equal(t, 0, resp.StatusCode)
	assert.ErrorIs(t, resp.Err, ErrNotConnected)
	assert.Empty(t, resp.Body)
	assert.Nil(t, r.Connection())
}

func TestScenario_ConnectRefused(t *testing.T) {
	loop := startLoop(t)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	dead := l.Addr().(*net.TCPAddr).AddrPort()
	require.NoError(t, l.Close())
	r, err := NewRequestWithEndpoints(loop, []netip.AddrPort{dead}, WithLogger(discard()))
	require.NoError(t, err)
	rec := record(r)

	r.Send()
	resp := rec.wait(t)

	assert.Equal(t, []message.State{message.Created, message.Done}, rec.states())
	assert.Equal(t, 0, resp.StatusCode)
	assert.ErrorIs(t, resp.Err, ErrConnectionAborted)
}
