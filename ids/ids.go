// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package ids provides the monotonically increasing numeric identifiers
// assigned to connections and requests.
//
// Identifiers are handed out by a Generator. Components take a Generator
// as a construction option so that tests, or processes hosting several
// independent engines, can supply their own sequence. When no Generator
// is supplied, the process-wide Connections and Requests counters are
// used.
package ids

import "sync/atomic"

// A Generator hands out identifiers. Implementations must be safe for
// concurrent use by multiple goroutines and must never return the same
// value twice.
type Generator interface {
	Next() uint64
}

// A Counter is a Generator producing 1, 2, 3, ... Its zero value is
// ready to use.
type Counter struct {
	n atomic.Uint64
}

// Next returns the next identifier in the sequence.
func (c *Counter) Next() uint64 {
	return c.n.Add(1)
}

// The GeneratorFunc type is an adapter to allow the use of ordinary
// functions as identifier generators.
type GeneratorFunc func() uint64

// Next calls f().
func (f GeneratorFunc) Next() uint64 {
	return f()
}

var (
	// Connections is the default generator for connection identifiers.
	Connections Generator = &Counter{}
	// Requests is the default generator for request identifiers.
	Requests Generator = &Counter{}
)
