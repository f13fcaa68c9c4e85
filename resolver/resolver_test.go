// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package resolver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"testing"
	"time"

	"github.com/gogama/asynchttp/reactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	ep4 = netip.MustParseAddrPort("192.0.2.1:80")
	ep6 = netip.MustParseAddrPort("[2001:db8::1]:80")
)

type outcome struct {
	id        int
	err       error
	endpoints []netip.AddrPort
}

func TestResolver(t *testing.T) {
	t.Run("callbacks queued until completion", func(t *testing.T) {
		loop := startLoop(t)
		release := make(chan struct{})
		m := newMockLookup(t)
		m.On("Lookup", mock.Anything, "example.test", "http").
			Run(func(mock.Arguments) { <-release }).
			Return([]netip.AddrPort{ep4, ep6}, nil).
			Once()

		r := New(loop, "example.test", "http", WithLookup(m.Lookup), WithLogger(discard()))
		ch := make(chan outcome, 3)
		for i := 0; i < 3; i++ {
			i := i
			r.AddCallback(func(err error, endpoints []netip.AddrPort) {
				ch <- outcome{i, err, endpoints}
			})
		}
		assert.False(t, r.Completed())
		assert.Empty(t, ch)

		close(release)
		for i := 0; i < 3; i++ {
			o := receive(t, ch)
			assert.Equal(t, i, o.id)
			assert.NoError(t, o.err)
			assert.Equal(t, []netip.AddrPort{ep4, ep6}, o.endpoints)
		}
		assert.True(t, r.Completed())
		assert.NoError(t, r.Err())
		assert.Equal(t, []netip.AddrPort{ep4, ep6}, r.Endpoints())

		var called bool
		r.AddCallback(func(err error, endpoints []netip.AddrPort) {
			called = true
			assert.NoError(t, err)
			assert.Equal(t, []netip.AddrPort{ep4, ep6}, endpoints)
		})
		assert.True(t, called, "completed resolver calls back synchronously")
		m.AssertExpectations(t)
	})
	t.Run("lookup error", func(t *testing.T) {
		loop := startLoop(t)
		lookupErr := errors.New("no such host")
		m := newMockLookup(t)
		m.On("Lookup", mock.Anything, "bad.test", "80").Return(nil, lookupErr).Once()

		r := New(loop, "bad.test", "80", WithLookup(m.Lookup), WithLogger(discard()))
		ch := make(chan outcome, 1)
		r.AddCallback(func(err error, endpoints []netip.AddrPort) {
			ch <- outcome{0, err, endpoints}
		})
		o := receive(t, ch)
		assert.Same(t, lookupErr, o.err)
		assert.Empty(t, o.endpoints)
		assert.Same(t, lookupErr, r.Err())
		assert.Empty(t, r.Endpoints())
		m.AssertExpectations(t)
	})
	t.Run("empty result", func(t *testing.T) {
		loop := startLoop(t)
		m := newMockLookup(t)
		m.On("Lookup", mock.Anything, "empty.test", "80").Return([]netip.AddrPort{}, nil).Once()

		r := New(loop, "empty.test", "80", WithLookup(m.Lookup), WithLogger(discard()))
		ch := make(chan outcome, 1)
		r.AddCallback(func(err error, endpoints []netip.AddrPort) {
			ch <- outcome{0, err, endpoints}
		})
		o := receive(t, ch)
		assert.ErrorIs(t, o.err, ErrNoEndpoints)
		assert.Empty(t, o.endpoints)
	})
	t.Run("close cancels pending callbacks", func(t *testing.T) {
		loop := startLoop(t)
		release := make(chan struct{})
		cancelled := make(chan struct{})
		m := newMockLookup(t)
		m.On("Lookup", mock.Anything, "slow.test", "80").
			Run(func(args mock.Arguments) {
				ctx := args.Get(0).(context.Context)
				<-ctx.Done()
				close(cancelled)
				<-release
			}).
			Return([]netip.AddrPort{ep4}, nil).
			Once()

		r := New(loop, "slow.test", "80", WithLookup(m.Lookup), WithLogger(discard()))
		var got []outcome
		for i := 0; i < 2; i++ {
			i := i
			r.AddCallback(func(err error, endpoints []netip.AddrPort) {
				got = append(got, outcome{i, err, endpoints})
			})
		}
		r.Close()
		require.Len(t, got, 2)
		for i, o := range got {
			assert.Equal(t, i, o.id)
			assert.ErrorIs(t, o.err, reactor.ErrAborted)
			assert.Empty(t, o.endpoints)
		}

		var late error
		r.AddCallback(func(err error, _ []netip.AddrPort) {
			late = err
		})
		assert.ErrorIs(t, late, reactor.ErrAborted)

		receiveSignal(t, cancelled)
		close(release)
		flush(t, loop)
		assert.False(t, r.Completed(), "outcome after close is discarded")
		assert.Len(t, got, 2)
		r.Close()
	})
	t.Run("close after completion", func(t *testing.T) {
		r := FromEndpoints([]netip.AddrPort{ep4})
		r.Close()
		assert.True(t, r.Completed())
		assert.Equal(t, []netip.AddrPort{ep4}, r.Endpoints())
	})
}

func TestFromEndpoints(t *testing.T) {
	in := []netip.AddrPort{ep6, ep4}
	r := FromEndpoints(in)
	in[0] = netip.AddrPort{}
	assert.True(t, r.Completed())
	assert.NoError(t, r.Err())

	var got []netip.AddrPort
	r.AddCallback(func(err error, endpoints []netip.AddrPort) {
		require.NoError(t, err)
		got = endpoints
	})
	assert.Equal(t, []netip.AddrPort{ep6, ep4}, got)
}

func TestResolver_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "asynchttp/resolver: nil loop", func() {
		New(nil, "h", "80")
	})
	assert.PanicsWithValue(t, "asynchttp/resolver: nil callback", func() {
		FromEndpoints(nil).AddCallback(nil)
	})
}

func TestLookup(t *testing.T) {
	testCases := []struct {
		host, service string
		expected      netip.AddrPort
	}{
		{"127.0.0.1", "8080", netip.MustParseAddrPort("127.0.0.1:8080")},
		{"::1", "443", netip.MustParseAddrPort("[::1]:443")},
		{"::ffff:10.0.0.1", "80", netip.MustParseAddrPort("10.0.0.1:80")},
	}
	for _, testCase := range testCases {
		t.Run(testCase.host, func(t *testing.T) {
			endpoints, err := Lookup(context.Background(), testCase.host, testCase.service)
			require.NoError(t, err)
			assert.Equal(t, []netip.AddrPort{testCase.expected}, endpoints)
		})
	}
	t.Run("bad port", func(t *testing.T) {
		_, err := Lookup(context.Background(), "127.0.0.1", "99999")
		assert.Error(t, err)
	})
}

func TestFamily(t *testing.T) {
	assert.Equal(t, "ipv4", family(ep4))
	assert.Equal(t, "ipv6", family(ep6))
}

type mockLookup struct {
	mock.Mock
}

func newMockLookup(t *testing.T) *mockLookup {
	m := &mockLookup{}
	m.Test(t)
	return m
}

func (m *mockLookup) Lookup(ctx context.Context, host, service string) ([]netip.AddrPort, error) {
	args := m.Called(ctx, host, service)
	endpoints, _ := args.Get(0).([]netip.AddrPort)
	return endpoints, args.Error(1)
}

func startLoop(t *testing.T) *reactor.Loop {
	loop := reactor.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = loop.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return loop
}

// flush waits until every task posted to loop so far, and any task
// they post in turn, has run.
func flush(t *testing.T, loop *reactor.Loop) {
	for i := 0; i < 3; i++ {
		ch := make(chan struct{})
		loop.Post(func() { close(ch) })
		receiveSignal(t, ch)
		time.Sleep(10 * time.Millisecond)
	}
}

func receive(t *testing.T, ch <-chan outcome) outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timed out waiting for callback")
		return outcome{}
	}
}

func receiveSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timed out waiting for signal")
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
