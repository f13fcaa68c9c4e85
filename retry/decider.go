// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"errors"
	"time"

	"github.com/gogama/asynchttp/transient"
)

// A Decider decides if a retry should be done.
//
// Implementations of Decider must be safe for concurrent use by
// multiple goroutines.
//
// Use the built-in constructors Times, Before, and ErrIs, and the
// built-in decider TransientErr; or implement your Decider. Use
// DeciderFunc to convert an ordinary function into a Decider, and to
// compose deciders logically using DeciderFunc.And and DeciderFunc.Or.
type Decider interface {
	Decide(a *Attempt) bool
}

// The DeciderFunc type is an adapter to allow the use of ordinary
// functions as retry deciders. It implements the Decider interface, and
// also provides the logical composition methods And and Or.
//
// Every DeciderFunc must be safe for concurrent use by multiple
// goroutines.
type DeciderFunc func(a *Attempt) bool

// DefaultTimes is the number of times DefaultPolicy will retry.
const DefaultTimes = 3

// DefaultDecider is a general-purpose retry decider suitable for
// common use cases. It will allow up to DefaultTimes retries (i.e. up
// to 4 rounds of connect attempts), and will retry only if the last
// connect failed with a transient error (TransientErr).
var DefaultDecider = Times(DefaultTimes).And(TransientErr)

// TransientErr is a decider that indicates a retry if the connect
// error is worth retrying according to transient.Retryable: a timeout,
// a refused connection, or a reset connection.
var TransientErr DeciderFunc = transientErr

// Decide returns true if a retry should be done, and false otherwise,
// after examining the failed round.
func (f DeciderFunc) Decide(a *Attempt) bool {
	return f(a)
}

// And composes two retry deciders into a new decider which returns true
// if both sub-deciders return true, and false otherwise.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// false.
func (f DeciderFunc) And(g DeciderFunc) DeciderFunc {
	return func(a *Attempt) bool {
		return f(a) && g(a)
	}
}

// Or composes two retry deciders into a new decider which returns
// true if either of the two sub-deciders returns true, but false if
// they both return false.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// true.
func (f DeciderFunc) Or(g DeciderFunc) DeciderFunc {
	return func(a *Attempt) bool {
		return f(a) || g(a)
	}
}

// Times constructs a retry decider which allows up to n retries. The
// returned decider returns true while a.Retries is less than n, and
// false otherwise.
func Times(n int) DeciderFunc {
	return func(a *Attempt) bool {
		return a.Retries < n
	}
}

// Before constructs a retry decider allowing retries until a certain
// amount of time has elapsed since the start of the exchange.
func Before(d time.Duration) DeciderFunc {
	return func(a *Attempt) bool {
		return a.Duration() < d
	}
}

// ErrIs constructs a retry decider which returns true if the connect
// error matches any of targets according to errors.Is.
func ErrIs(targets ...error) DeciderFunc {
	targets2 := make([]error, len(targets))
	copy(targets2, targets)
	return func(a *Attempt) bool {
		for _, target := range targets2 {
			if errors.Is(a.Err, target) {
				return true
			}
		}
		return false
	}
}

func transientErr(a *Attempt) bool {
	return transient.Retryable(a.Err)
}
