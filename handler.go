// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package asynchttp

import (
	"github.com/gogama/asynchttp/message"
)

// A HandlerGroup is a group of state handler chains which can be
// installed in a Request, or in a Client to be installed in every
// Request it creates.
//
// A HandlerGroup is not safe for concurrent modification. Build it
// before installing it.
type HandlerGroup struct {
	handlers [][]Handler
}

// PushBack adds a state handler to the back of the handler chain for a
// specific state.
func (g *HandlerGroup) PushBack(s message.State, h Handler) {
	if h == nil {
		panic("asynchttp: nil handler")
	}
	if int(s) < 0 || int(s) >= len(message.States()) {
		panic("asynchttp: invalid state")
	}

	if g.handlers == nil {
		g.handlers = make([][]Handler, len(message.States()))
	}

	g.handlers[s] = append(g.handlers[s], h)
}

func (g *HandlerGroup) run(s message.State, r *message.Response) {
	if g == nil {
		return
	}
	i := int(s)
	if i < len(g.handlers) {
		run(g.handlers[i], s, r)
	}
}

func run(chain []Handler, s message.State, r *message.Response) {
	for _, h := range chain {
		h.Handle(s, r)
	}
}

// A Handler handles a state transition of a request exchange. It runs on
// the reactor loop, and is handed the same response snapshot that the
// state change callback receives afterward.
type Handler interface {
	Handle(message.State, *message.Response)
}

// The HandlerFunc type is an adapter to allow the use of ordinary
// functions as state handlers.
type HandlerFunc func(message.State, *message.Response)

// Handle calls f(s, r).
func (f HandlerFunc) Handle(s message.State, r *message.Response) {
	f(s, r)
}
