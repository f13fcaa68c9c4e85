// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package conn

import (
	"time"

	"github.com/gogama/asynchttp/reactor"
)

type timerState struct {
	t *reactor.Timer
}

// Timeout arms the inactivity timer, replacing any timer already armed.
// If d elapses before the timer is cancelled or replaced, cb is called
// on the loop with ErrTimeout. A cancelled or replaced timer never
// calls cb.
//
// Timeout on a closed connection logs an error and does nothing.
func (c *Conn) Timeout(d time.Duration, cb func(error)) {
	if cb == nil {
		panic("asynchttp/conn: nil timeout handler")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nc == nil {
		c.logger.Error("timeout on closed connection", "timeout", d)
		return
	}

	c.stopTimerLocked()
	ts := &timerState{}
	ts.t = c.loop.AfterFunc(d, func(err error) {
		if err != nil {
			return
		}
		c.mu.Lock()
		current := c.timer == ts
		if current {
			c.timer = nil
		}
		c.mu.Unlock()
		if current {
			cb(ErrTimeout)
		}
	})
	c.timer = ts
}

// CancelTimeout disarms the inactivity timer, if armed.
func (c *Conn) CancelTimeout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
}

func (c *Conn) stopTimerLocked() {
	if c.timer != nil {
		c.timer.t.Stop()
		c.timer = nil
	}
}
