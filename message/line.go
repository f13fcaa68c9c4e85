// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package message

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// A RequestLine holds the first line of an HTTP request: the method,
// the request target, and the protocol version.
//
// The zero value is usable and is sent as "GET / HTTP/1.1".
type RequestLine struct {
	// Method specifies the HTTP method (GET, POST, PUT, etc.). An
	// empty string means GET.
	Method string
	// Target is the request target, normally an absolute path with an
	// optional query. An empty string means "/".
	Target string
	// Major and Minor are the protocol version numbers. When both are
	// zero the version is HTTP/1.1.
	Major, Minor int
}

// ErrInvalidRequestLine is returned when a request line cannot be
// written to the wire.
var ErrInvalidRequestLine = errors.New("asynchttp/message: invalid request line")

// Validate checks that the method is an RFC 7230 token, that the target
// contains no whitespace or control characters, and that the version
// numbers are non-negative single digits.
func (l RequestLine) Validate() error {
	if l.Method != "" && strings.IndexFunc(l.Method, isNotToken) != -1 {
		return fmt.Errorf("%w: method %q", ErrInvalidRequestLine, l.Method)
	}
	for i := 0; i < len(l.Target); i++ {
		if c := l.Target[i]; c <= ' ' || c == 0x7f {
			return fmt.Errorf("%w: target %q", ErrInvalidRequestLine, l.Target)
		}
	}
	if l.Major < 0 || l.Major > 9 || l.Minor < 0 || l.Minor > 9 {
		return fmt.Errorf("%w: version %d.%d", ErrInvalidRequestLine, l.Major, l.Minor)
	}
	return nil
}

func (l RequestLine) normalize() RequestLine {
	if l.Method == "" {
		l.Method = "GET"
	}
	if l.Target == "" {
		l.Target = "/"
	}
	if l.Major == 0 && l.Minor == 0 {
		l.Major, l.Minor = 1, 1
	}
	return l
}

// String returns the request line as it appears on the wire, without
// the trailing CRLF.
func (l RequestLine) String() string {
	l = l.normalize()
	return fmt.Sprintf("%s %s HTTP/%d.%d", l.Method, l.Target, l.Major, l.Minor)
}

func isNotToken(r rune) bool {
	return !httpguts.IsTokenRune(r)
}
