// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package message

import (
	"net/textproto"
	"strconv"
	"strings"
)

// StatusCompleted is the status code a Response carries when its
// exchange ended without a transport failure.
const StatusCompleted = 200

// A Response is the response being assembled by a request exchange.
//
// While the exchange runs, StatusCode holds the code parsed from the
// status line (zero until known). When the exchange ends it is
// normalized to the outcome: StatusCompleted if the exchange ended
// normally, including when the server simply closed the connection, or
// zero if it failed. The parsed code is kept in Received.
type Response struct {
	// StatusCode is the status code, as described above.
	StatusCode int

	// Received is the status code read from the status line, or zero
	// if no status line was parsed.
	Received int

	// Header maps canonical header field names to values. If a field
	// appears more than once, the last value wins.
	Header map[string]string

	// Body accumulates the body bytes delivered by the parser.
	Body []byte

	// Err is the error the exchange ended with. It is nil while the
	// exchange is running and when it ended without any error.
	Err error
}

// Get returns the value of the header field name, matched without
// regard to case.
func (r *Response) Get(name string) (string, bool) {
	v, ok := r.Header[textproto.CanonicalMIMEHeaderKey(name)]
	return v, ok
}

// KeepAlive reports whether the response carries Connection:
// keep-alive.
func (r *Response) KeepAlive() bool {
	v, _ := r.Get("Connection")
	return strings.EqualFold(strings.TrimSpace(v), "keep-alive")
}

// ContentLength returns the numeric Content-Length of the response. The
// first result reports whether the field is present at all; the second
// is the length, or -1 if the field is absent or not a valid
// non-negative integer.
func (r *Response) ContentLength() (present bool, n int) {
	v, ok := r.Get("Content-Length")
	if !ok {
		return false, -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return true, -1
	}
	return true, n
}

// Clone returns a deep copy of r, suitable for handing to callbacks
// which may retain it.
func (r *Response) Clone() Response {
	c := *r
	if r.Header != nil {
		c.Header = make(map[string]string, len(r.Header))
		for k, v := range r.Header {
			c.Header[k] = v
		}
	}
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return c
}
