// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package reactor

import (
	"sync/atomic"
	"time"
)

const (
	timerArmed int32 = iota
	timerFired
	timerStopped
)

// A Timer is a one-shot timer whose handler runs on a Loop. Create
// timers with Loop.AfterFunc.
//
// The handler is invoked exactly once: with a nil error when the timer
// expires, or with ErrAborted when Stop wins the race against expiry.
type Timer struct {
	loop  *Loop
	fn    func(error)
	t     *time.Timer
	state atomic.Int32
}

// AfterFunc arms a timer which posts fn(nil) to the loop after d has
// elapsed, unless the timer is stopped first.
func (l *Loop) AfterFunc(d time.Duration, fn func(error)) *Timer {
	if fn == nil {
		panic("asynchttp/reactor: nil timer handler")
	}

	tm := &Timer{loop: l, fn: fn}
	tm.t = time.AfterFunc(d, tm.expire)
	return tm
}

// Stop cancels the timer. If the timer had not yet expired, Stop
// returns true and the handler is posted with ErrAborted. If the timer
// already expired, or was already stopped, Stop returns false and
// nothing further happens.
func (tm *Timer) Stop() bool {
	if !tm.state.CompareAndSwap(timerArmed, timerStopped) {
		return false
	}

	tm.t.Stop()
	tm.loop.Post(func() {
		tm.fn(ErrAborted)
	})
	return true
}

func (tm *Timer) expire() {
	if tm.state.CompareAndSwap(timerArmed, timerFired) {
		tm.loop.Post(func() {
			tm.fn(nil)
		})
	}
}
