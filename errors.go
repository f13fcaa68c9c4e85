// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package asynchttp

import (
	"errors"

	"github.com/gogama/asynchttp/conn"
	"github.com/gogama/asynchttp/message"
	"github.com/gogama/asynchttp/transient"
)

var (
	// ErrConnectionAborted is the error an exchange ends with when it
	// could not get a connection: resolution failed, or every endpoint
	// refused the connection. The cause is wrapped alongside it.
	ErrConnectionAborted = errors.New("asynchttp: connection aborted")

	// ErrNotConnected is the error an exchange ends with when the
	// request could not be written because the connection failed or
	// was closed. The cause is wrapped alongside it.
	ErrNotConnected = errors.New("asynchttp: not connected")

	// ErrTimeout is the error an exchange ends with when the
	// connection stayed idle for longer than the timeout policy
	// allows.
	ErrTimeout = conn.ErrTimeout
)

// outcome returns the status code an exchange ending with err is
// given: message.StatusCompleted for no error, end of stream, and
// local cancellation, and zero for everything else.
func outcome(err error) int {
	if errors.Is(err, ErrConnectionAborted) || errors.Is(err, ErrNotConnected) {
		return 0
	}
	if transient.Normal(err) {
		return message.StatusCompleted
	}
	return 0
}
