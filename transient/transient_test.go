// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/gogama/asynchttp/reactor"
	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	assert.Equal(t, Not, Categorize(nil))
	assert.Equal(t, Not, Categorize(errors.New("foo")))
	assert.Equal(t, Not, Categorize(wrapper{}))
	assert.Equal(t, Not, Categorize(wrapper{errors.New("bar")}))
	assert.Equal(t, Timeout, Categorize(syscall.ETIMEDOUT))
	assert.Equal(t, Timeout, Categorize(timeout{}))
	assert.Equal(t, Timeout, Categorize(&net.OpError{Op: "read", Err: timeout{}}))
	assert.Equal(t, Timeout, Categorize(wrapper{wrapper{timeout{}}}))
	assert.Equal(t, Timeout, Categorize(os.ErrDeadlineExceeded))
	assert.Equal(t, Timeout, Categorize(timeoutWrapper{true, syscall.ECONNRESET}))
	assert.Equal(t, ConnReset, Categorize(syscall.ECONNRESET))
	assert.Equal(t, ConnReset, Categorize(syscall.EPIPE))
	assert.Equal(t, ConnReset, Categorize(&net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}))
	assert.Equal(t, ConnReset, Categorize(timeoutWrapper{false, syscall.ECONNRESET}))
	assert.Equal(t, ConnRefused, Categorize(syscall.ECONNREFUSED))
	assert.Equal(t, ConnRefused, Categorize(wrapper{syscall.ECONNREFUSED}))
	assert.Equal(t, EndOfStream, Categorize(io.EOF))
	assert.Equal(t, EndOfStream, Categorize(fmt.Errorf("read: %w", io.EOF)))
	assert.Equal(t, EndOfStream, Categorize(io.ErrUnexpectedEOF))
	assert.Equal(t, Aborted, Categorize(reactor.ErrAborted))
	assert.Equal(t, Aborted, Categorize(wrapper{reactor.ErrAborted}))
	assert.Equal(t, Aborted, Categorize(&net.OpError{Op: "read", Err: net.ErrClosed}))
}

func TestCategory_String(t *testing.T) {
	assert.Equal(t, "Not", Not.String())
	assert.Equal(t, "Timeout", Timeout.String())
	assert.Equal(t, "ConnRefused", ConnRefused.String())
	assert.Equal(t, "ConnReset", ConnReset.String())
	assert.Equal(t, "EndOfStream", EndOfStream.String())
	assert.Equal(t, "Aborted", Aborted.String())
	assert.Equal(t, "Unknown", Category(99).String())
}

func TestNormal(t *testing.T) {
	assert.True(t, Normal(nil))
	assert.True(t, Normal(io.EOF))
	assert.True(t, Normal(reactor.ErrAborted))
	assert.True(t, Normal(net.ErrClosed))
	assert.False(t, Normal(syscall.ECONNRESET))
	assert.False(t, Normal(syscall.ECONNREFUSED))
	assert.False(t, Normal(timeout{}))
	assert.False(t, Normal(errors.New("foo")))
}

func TestPeerClosed(t *testing.T) {
	assert.True(t, PeerClosed(io.EOF))
	assert.True(t, PeerClosed(syscall.ECONNRESET))
	assert.False(t, PeerClosed(nil))
	assert.False(t, PeerClosed(reactor.ErrAborted))
	assert.False(t, PeerClosed(errors.New("foo")))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(syscall.ECONNREFUSED))
	assert.True(t, Retryable(syscall.ECONNRESET))
	assert.True(t, Retryable(timeout{}))
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(io.EOF))
	assert.False(t, Retryable(errors.New("foo")))
}

type timeout struct{}

func (err timeout) Error() string {
	return "timeout"
}

func (_ timeout) Timeout() bool {
	return true
}

type wrapper struct {
	wrappedError error
}

func (err wrapper) Error() string {
	return fmt.Sprintf("wrapper - wraps %v", err.wrappedError)
}

func (err wrapper) Unwrap() error {
	return err.wrappedError
}

type timeoutWrapper struct {
	timeout      bool
	wrappedError error
}

func (err timeoutWrapper) Error() string {
	return fmt.Sprintf("timeoutWrapper - timeout %t, wraps %v", err.timeout, err.wrappedError)
}

func (err timeoutWrapper) Timeout() bool {
	return err.timeout
}

func (err timeoutWrapper) Unwrap() error {
	return err.wrappedError
}
