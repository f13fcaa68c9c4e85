// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package message

// A ConnectionType is the connection directive sent in the Connection
// header of a request.
type ConnectionType int

const (
	// Unset means no directive was chosen. It is sent as close.
	Unset ConnectionType = iota
	// Close asks the server to close the connection after responding.
	Close
	// KeepAlive asks the server to keep the connection open.
	KeepAlive
	// Upgrade is a protocol upgrade directive. It is not supported,
	// and Build rejects it.
	Upgrade
)

// Normalize returns the directive actually sent for c: KeepAlive stays
// KeepAlive, Upgrade stays Upgrade (to be rejected), and anything else,
// including Unset and out of range values, becomes Close.
func (c ConnectionType) Normalize() ConnectionType {
	switch c {
	case KeepAlive, Upgrade:
		return c
	default:
		return Close
	}
}

// String returns the header value for c: "keep-alive", "upgrade", or
// "close".
func (c ConnectionType) String() string {
	switch c {
	case KeepAlive:
		return "keep-alive"
	case Upgrade:
		return "upgrade"
	default:
		return "close"
	}
}
