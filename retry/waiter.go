// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math/rand/v2"
	"time"
)

// A Waiter specifies how long a request waits before its next round of
// connect attempts. The request arms a loop timer for the returned
// duration, so a zero wait retries on the next turn of the loop.
//
// Implementations of Waiter must be safe for concurrent use by multiple
// goroutines.
//
// A request does not consult the Waiter unless the Decider of its
// policy returned true.
type Waiter interface {
	Wait(a *Attempt) time.Duration
}

// The WaiterFunc type is an adapter to allow the use of ordinary
// functions as Waiter.
type WaiterFunc func(a *Attempt) time.Duration

// Wait calls f(a).
func (f WaiterFunc) Wait(a *Attempt) time.Duration {
	return f(a)
}

// DefaultWaiter is the default connect retry wait policy. It backs off
// exponentially from 50 milliseconds to at most 1 second, with full
// jitter.
var DefaultWaiter = NewExpWaiter(50*time.Millisecond, 1*time.Second, FullJitter)

// NewFixedWaiter constructs a Waiter that always returns d.
func NewFixedWaiter(d time.Duration) Waiter {
	if d < 0 {
		panic("asynchttp/retry: negative wait")
	}
	return fixedWaiter(d)
}

type fixedWaiter time.Duration

func (w fixedWaiter) Wait(_ *Attempt) time.Duration {
	return time.Duration(w)
}

// Jitter selects how an exponential Waiter randomizes its wait.
type Jitter int

const (
	// NoJitter waits exactly the ceiling.
	NoJitter Jitter = iota
	// FullJitter waits a random duration in [0, ceiling).
	FullJitter
	// EqualJitter waits half the ceiling plus a random duration in
	// [0, ceiling/2).
	EqualJitter
)

// NewExpWaiter constructs a Waiter with exponential backoff. The
// ceiling for an attempt is:
//
//	ceil := min(base * 2**retries, max)
//
// and j decides how the wait is drawn below the ceiling. See
// https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter
// for a comparison of the jitter strategies.
//
// Base must be positive and max must be at least base.
func NewExpWaiter(base, max time.Duration, j Jitter) Waiter {
	if base < 1 {
		panic("asynchttp/retry: base must be positive")
	}
	if max < base {
		panic("asynchttp/retry: max must be at least base")
	}
	if j < NoJitter || j > EqualJitter {
		panic("asynchttp/retry: invalid jitter")
	}
	return expWaiter{base: base, max: max, jitter: j}
}

type expWaiter struct {
	base   time.Duration
	max    time.Duration
	jitter Jitter
}

func (w expWaiter) Wait(a *Attempt) time.Duration {
	ceil := w.ceil(a.Retries)
	switch w.jitter {
	case FullJitter:
		return rand.N(ceil)
	case EqualJitter:
		half := ceil / 2
		return half + rand.N(ceil-half)
	default:
		return ceil
	}
}

func (w expWaiter) ceil(retries int) time.Duration {
	if retries < 0 {
		retries = 0
	}
	if retries >= 63 {
		return w.max
	}
	d := w.base << retries
	if d>>retries != w.base || d > w.max {
		return w.max
	}
	return d
}
