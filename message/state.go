// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package message

// A State identifies the lifecycle stage of a request exchange. Every
// transition is reported to the request's state change callback.
//
// A successful exchange visits, in order: Created, Sending, Receiving,
// HeaderReceived, Receiving, Done. Done is terminal, and is reachable
// directly from any other state on failure.
type State int

const (
	// Created identifies the start of an exchange, before endpoints
	// are resolved and a connection is established.
	Created State = iota
	// Sending identifies the stage where the built request is being
	// written to the connection.
	Sending
	// Receiving identifies the stages where response bytes are being
	// read: first the header block, then, after HeaderReceived, the
	// body.
	Receiving
	// HeaderReceived identifies the point where the response status
	// line and header block have been parsed, and before body framing
	// is decided.
	HeaderReceived
	// Done identifies the end of an exchange. The Response handed to
	// the state change callback alongside Done is final.
	Done
	// stateSentinel provides the total number of states typed as a
	// State.
	stateSentinel

	// numStates provides the total number of states as an int.
	numStates = int(stateSentinel)
)

var stateNames = []string{
	"CREATED",
	"SENDING",
	"RECEIVING",
	"HEADER_RECEIVED",
	"DONE",
}

// States returns a slice containing all states, in declaration order.
func States() []State {
	return []State{
		Created,
		Sending,
		Receiving,
		HeaderReceived,
		Done,
	}
}

// Name returns the name of the state.
func (s State) Name() string {
	if s < 0 || int(s) >= numStates {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// String returns the name of the state.
func (s State) String() string {
	return s.Name()
}
