// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"time"

	"github.com/gogama/asynchttp/message"
)

// A Policy defines a timeout policy which may be plugged into a request
// (asynchttp.Request) to direct how long the connection may stay idle
// in each state of the exchange.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines.
type Policy interface {
	// Timeout returns the inactivity timeout to arm when the exchange
	// enters state s, or when it makes progress while in state s.
	//
	// A non-positive return value means no timeout.
	Timeout(s message.State) time.Duration
}

// The PolicyFunc type is an adapter to allow the use of ordinary
// functions as timeout policies.
type PolicyFunc func(s message.State) time.Duration

// Timeout calls f(s).
func (f PolicyFunc) Timeout(s message.State) time.Duration {
	return f(s)
}

// DefaultPolicy is the default timeout policy. It sets a fixed
// inactivity timeout of 30 seconds in every state.
var DefaultPolicy Policy = Fixed(30 * time.Second)

// Infinite is a built-in timeout policy which never times out.
var Infinite Policy = Fixed(0)

// Fixed constructs a timeout policy that uses the same value in every
// state. The return value is a timeout policy that always returns the
// value d.
func Fixed(d time.Duration) Policy {
	return PolicyFunc(func(message.State) time.Duration {
		return d
	})
}

// PerState constructs a timeout policy that varies the timeout by
// state.
//
// Parameter usual is the timeout for any state not present in
// overrides. Consider the following timeout policy:
//
//	p := PerState(5*time.Second, map[message.State]time.Duration{
//		message.Receiving: time.Minute,
//	})
//
// The policy p allows a slow server a minute between response bytes,
// but gives up on a send, or on a header, that makes no progress for 5
// seconds.
func PerState(usual time.Duration, overrides map[message.State]time.Duration) Policy {
	p := make(perState, len(message.States()))
	for i := range p {
		p[i] = usual
	}
	for s, d := range overrides {
		if int(s) >= 0 && int(s) < len(p) {
			p[s] = d
		}
	}
	return p
}

type perState []time.Duration

func (p perState) Timeout(s message.State) time.Duration {
	if int(s) < 0 || int(s) >= len(p) {
		return 0
	}
	return p[s]
}
