// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package asynchttp

import (
	"fmt"
	"testing"

	"github.com/gogama/asynchttp/message"
	"github.com/stretchr/testify/assert"
)

func TestHandlerGroup(t *testing.T) {
	var states []string
	var resps []*message.Response
	h1 := &testHandler{seq: 1, states: &states, resps: &resps}
	h2 := &testHandler{seq: 2, states: &states, resps: &resps}
	g := &HandlerGroup{}
	t.Run("PushBack", func(t *testing.T) {
		assert.PanicsWithValue(t, "asynchttp: nil handler", func() { g.PushBack(message.Created, nil) })
		assert.PanicsWithValue(t, "asynchttp: invalid state", func() { g.PushBack(message.State(123), h1) })
		g.PushBack(message.Created, h1)
		g.PushBack(message.Created, h2)
		g.PushBack(message.Done, h1)
	})
	t.Run("run", func(t *testing.T) {
		r1 := &message.Response{StatusCode: 1}
		r2 := &message.Response{StatusCode: 2}
		assert.Empty(t, states)
		assert.Empty(t, resps)
		g.run(message.Sending, r1)
		assert.Empty(t, states)
		assert.Empty(t, resps)
		g.run(message.Created, r1)
		assert.Equal(t, []string{"1.CREATED", "2.CREATED"}, states)
		assert.Equal(t, []*message.Response{r1, r1}, resps)
		states = states[:0]
		resps = resps[:0]
		g.run(message.Done, r2)
		assert.Equal(t, []string{"1.DONE"}, states)
		assert.Equal(t, []*message.Response{r2}, resps)
	})
	t.Run("nil group", func(t *testing.T) {
		var nilGroup *HandlerGroup
		assert.NotPanics(t, func() { nilGroup.run(message.Done, &message.Response{}) })
	})
}

type testHandler struct {
	seq    int
	states *[]string
	resps  *[]*message.Response
}

func (h *testHandler) Handle(s message.State, r *message.Response) {
	*h.states = append(*h.states, fmt.Sprintf("%d.%s", h.seq, s))
	*h.resps = append(*h.resps, r)
}

func TestHandlerFunc(t *testing.T) {
	var _s message.State
	var _r *message.Response
	var f = func(s message.State, r *message.Response) {
		_s = s
		_r = r
	}
	h := HandlerFunc(f)
	r := &message.Response{}
	h.Handle(message.HeaderReceived, r)

	assert.Equal(t, message.HeaderReceived, _s)
	assert.Same(t, r, _r)
}
