// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package retry decides whether a request tries its endpoints again
// after every one of them refused a connection, and how long it waits
// before the next round.
//
// Only the connect step is ever retried. Once a connection exists, a
// failure ends the exchange, because the request bytes may already have
// reached the server.
//
// A Policy pairs a Decider with a Waiter:
//
//	policy := retry.NewPolicy(
//		retry.Times(3).And(retry.TransientErr),
//		retry.NewExpWaiter(100*time.Millisecond, 2*time.Second, retry.EqualJitter),
//	)
//
// Deciders compose with And and Or. A request without a policy uses
// Never.
package retry
