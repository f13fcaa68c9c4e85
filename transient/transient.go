// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transient categorizes the transport errors seen while
// driving an HTTP exchange, and decides which of them count as a
// normal end of the exchange.
package transient

import (
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/gogama/asynchttp/reactor"
)

// A Category is the category of a particular error, as reported by
// function Categorize.
//
// The category Not means the error is none of the specific conditions
// below: a hard failure that ends the exchange with a zero status.
type Category int

const (
	// Not indicates any error not covered by another category, and
	// also the nil error.
	Not Category = iota
	// Timeout indicates a client-side timeout.
	//
	// Function Categorize will return Timeout if the error or any of
	// its wrapped causes has a Timeout() function that reports true.
	Timeout
	// ConnRefused indicates the remote host refused the connection,
	// and corresponds to the POSIX error code ECONNREFUSED.
	ConnRefused
	// ConnReset indicates the remote host returned an RST packet on a
	// previously active TCP connection, and corresponds to the POSIX
	// error codes ECONNRESET and EPIPE.
	ConnReset
	// EndOfStream indicates the peer closed its side of the
	// connection cleanly (io.EOF or io.ErrUnexpectedEOF).
	EndOfStream
	// Aborted indicates the operation was cancelled locally, either
	// with reactor.ErrAborted or by closing the socket underneath a
	// pending operation (net.ErrClosed).
	Aborted
)

var categoryNames = []string{
	"Not",
	"Timeout",
	"ConnRefused",
	"ConnReset",
	"EndOfStream",
	"Aborted",
}

// String returns the name of the category.
func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "Unknown"
	}
	return categoryNames[c]
}

// Categorize returns the category of the given error. Categorize looks
// at wrapped cause errors contained within err, not just err itself.
//
// Local cancellation is checked first, then timeouts, then end of
// stream, then the POSIX error codes.
func Categorize(err error) Category {
	if err == nil {
		return Not
	}

	if errors.Is(err, reactor.ErrAborted) || errors.Is(err, net.ErrClosed) {
		return Aborted
	}

	var hasTimeout hasTimeout
	if errors.As(err, &hasTimeout) && hasTimeout.Timeout() {
		return Timeout
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return EndOfStream
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNRESET, syscall.EPIPE:
			return ConnReset
		case syscall.ECONNREFUSED:
			return ConnRefused
		}
	}

	return Not
}

// Normal reports whether err ends an exchange normally. The nil error,
// end of stream, and local cancellation are all normal: a server
// closing the connection after delivering a response is expected
// behavior.
func Normal(err error) bool {
	if err == nil {
		return true
	}
	switch Categorize(err) {
	case EndOfStream, Aborted:
		return true
	default:
		return false
	}
}

// PeerClosed reports whether err means the peer went away, either
// cleanly (end of stream) or abruptly (connection reset).
func PeerClosed(err error) bool {
	switch Categorize(err) {
	case EndOfStream, ConnReset:
		return true
	default:
		return false
	}
}

// Retryable reports whether err is worth another connect attempt:
// timeouts, refusals, and resets.
func Retryable(err error) bool {
	switch Categorize(err) {
	case Timeout, ConnRefused, ConnReset:
		return true
	default:
		return false
	}
}

type hasTimeout interface {
	Timeout() bool
}
