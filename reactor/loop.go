// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package reactor provides the single-goroutine event loop which drives
// every completion handler in asynchttp.
//
// A Loop runs posted tasks one at a time, in the order they were
// posted, on the goroutine that called Run. Blocking work (dialing,
// socket reads and writes, DNS lookups) happens on helper goroutines
// which post their completion back to the Loop, so handlers never
// block the loop and never run concurrently with each other.
package reactor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrAborted is delivered to a completion handler when the
	// operation was cancelled locally (a timer stopped, a pending
	// read abandoned, a resolver closed). It is never a transport
	// failure.
	ErrAborted = errors.New("asynchttp/reactor: operation aborted")

	// ErrRunning is returned by Run if the Loop is already running on
	// another goroutine.
	ErrRunning = errors.New("asynchttp/reactor: loop already running")
)

// A Loop is a FIFO task executor. Its zero value is not usable; create
// loops with New.
//
// Post and AfterFunc are safe for concurrent use by multiple
// goroutines. Run must be called by exactly one goroutine at a time.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stop    chan struct{}
	once    sync.Once
	running atomic.Bool
}

// New returns a new Loop. The loop does nothing until Run is called,
// but tasks may be posted to it beforehand.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
}

// Post schedules fn to run on the loop goroutine. Post never blocks.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		panic("asynchttp/reactor: nil task")
	}

	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run executes posted tasks until ctx is done or Stop is called. It
// returns nil after Stop, and ctx.Err() if the context ended first.
//
// Tasks still queued when Run returns are kept, and run by the next
// call to Run.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer l.running.Store(false)

	for {
		select {
		case <-l.stop:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		l.drain()

		select {
		case <-l.wake:
		case <-l.stop:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop makes Run return. It is safe to call Stop more than once.
func (l *Loop) Stop() {
	l.once.Do(func() {
		close(l.stop)
	})
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			return
		}

		for _, fn := range batch {
			fn()
		}
	}
}
