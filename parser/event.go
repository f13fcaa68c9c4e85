// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package parser

import "fmt"

// A Kind identifies the kind of an Event.
type Kind int

const (
	// Status is emitted once the status line is parsed. Event.Code
	// holds the status code.
	Status Kind = iota
	// HeaderField is emitted for each header field name. Event.Data
	// holds the name exactly as it appeared on the wire.
	HeaderField
	// HeaderValue follows each HeaderField. Event.Data holds the value
	// with surrounding whitespace removed.
	HeaderValue
	// HeadersComplete is emitted after the empty line which ends the
	// header block.
	HeadersComplete
	// Body is emitted for each run of body bytes. Event.Data holds the
	// bytes.
	Body
	// MessageComplete is emitted when a framed body has been fully
	// received, or immediately after HeadersComplete if the message
	// has no body.
	MessageComplete
	// Error is emitted once, when the parser fails. Event.Err holds
	// the reason.
	Error
)

var kindNames = []string{
	"Status",
	"HeaderField",
	"HeaderValue",
	"HeadersComplete",
	"Body",
	"MessageComplete",
	"Error",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

// An Event is one parse event. The Data slice is owned by the
// receiver and is not modified by later calls to Feed.
type Event struct {
	Kind Kind
	Code int
	Data []byte
	Err  error
}

// String returns a short human-readable description of the event.
func (e Event) String() string {
	switch e.Kind {
	case Status:
		return fmt.Sprintf("Status(%d)", e.Code)
	case HeaderField, HeaderValue:
		return fmt.Sprintf("%s(%q)", e.Kind, e.Data)
	case Body:
		return fmt.Sprintf("Body(%d bytes)", len(e.Data))
	case Error:
		return fmt.Sprintf("Error(%v)", e.Err)
	default:
		return e.Kind.String()
	}
}
