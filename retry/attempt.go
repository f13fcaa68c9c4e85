// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import "time"

// An Attempt describes a failed round of connect attempts, in which
// every endpoint was tried and none accepted a connection.
type Attempt struct {
	// Retries is the number of retries already done within the
	// exchange. It is zero after the first round fails.
	Retries int
	// Err is the error the last endpoint of the round failed with.
	Err error
	// Start is the time the exchange started.
	Start time.Time
	// End is the time the round failed. The zero value means now.
	End time.Time
}

// Duration returns the time elapsed between the start of the exchange
// and the end of the failed round.
func (a *Attempt) Duration() time.Duration {
	if a.End.IsZero() {
		return time.Since(a.Start)
	}
	return a.End.Sub(a.Start)
}
