// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

// A Policy is consulted by a request each time a full round of connect
// attempts fails. Decide says whether to run another round, and Wait
// says how long to wait before it.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines, since requests on different loops may share one.
type Policy interface {
	Decider
	Waiter
}

// DefaultPolicy retries transient connect failures up to DefaultTimes
// times, waiting per DefaultWaiter between rounds.
var DefaultPolicy Policy = NewPolicy(DefaultDecider, DefaultWaiter)

// Never is a policy that never retries. Requests use it unless given
// another policy.
var Never Policy = NewPolicy(Times(0), NewFixedWaiter(0))

type policy struct {
	Decider
	Waiter
}

// NewPolicy composes a Decider and a Waiter into a retry Policy.
func NewPolicy(d Decider, w Waiter) Policy {
	if d == nil {
		panic("asynchttp/retry: nil decider")
	}
	if w == nil {
		panic("asynchttp/retry: nil waiter")
	}
	return policy{Decider: d, Waiter: w}
}
