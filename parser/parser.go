// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/net/http/httpguts"
)

// DefaultMaxHeaderBytes is the default limit on the size of a status
// line plus header block.
const DefaultMaxHeaderBytes = 80 * 1024

var (
	// ErrInvalidStatusLine is reported when the first line of a
	// message is not a valid HTTP/1.x status line.
	ErrInvalidStatusLine = errors.New("asynchttp/parser: invalid status line")
	// ErrInvalidHeader is reported for a malformed header line.
	ErrInvalidHeader = errors.New("asynchttp/parser: invalid header line")
	// ErrHeaderOverflow is reported when the status line and header
	// block exceed the maximum header size.
	ErrHeaderOverflow = errors.New("asynchttp/parser: header block too large")
	// ErrInvalidContentLength is reported when Content-Length is not a
	// non-negative integer, or appears twice with different values.
	ErrInvalidContentLength = errors.New("asynchttp/parser: invalid content length")
)

var contentLength = []byte("Content-Length")

type state int

const (
	stateStatusLine state = iota
	stateHeaderLine
	stateBodyLength
	stateBodyUntilClose
	stateFailed
)

// A Parser is an incremental HTTP/1.x response parser. Its zero value
// is not usable; create parsers with New.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	maxHeaderBytes int

	state      state
	line       []byte
	headerSize int
	code       int
	length     int64 // -1 unless a Content-Length field was seen
	remaining  int64
	err        error
}

// An Option configures a Parser.
type Option func(*Parser)

// WithMaxHeaderBytes sets the maximum size of the status line plus
// header block. Non-positive values select DefaultMaxHeaderBytes.
func WithMaxHeaderBytes(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxHeaderBytes = n
		}
	}
}

// New returns a Parser expecting the status line of a new response.
func New(opts ...Option) *Parser {
	p := &Parser{maxHeaderBytes: DefaultMaxHeaderBytes}
	for _, opt := range opts {
		opt(p)
	}
	p.Reset()
	return p
}

// Reset discards all parse state, including a failure, so the next
// byte fed is expected to begin a status line.
func (p *Parser) Reset() {
	p.state = stateStatusLine
	p.line = p.line[:0]
	p.headerSize = 0
	p.code = 0
	p.length = -1
	p.remaining = 0
	p.err = nil
}

// Err returns the error which put the parser into the failed state, or
// nil if it has not failed.
func (p *Parser) Err() error {
	return p.err
}

// Feed parses b and returns the events it produced, in order. Feed
// retains no reference to b.
//
// After an Error event the parser is failed: further calls return no
// events until Reset is called.
func (p *Parser) Feed(b []byte) []Event {
	var events []Event
	for len(b) > 0 {
		switch p.state {
		case stateFailed:
			return events
		case stateStatusLine, stateHeaderLine:
			var line []byte
			var ok bool
			line, b, ok = p.takeLine(b)
			if !ok {
				if p.state == stateFailed {
					events = append(events, Event{Kind: Error, Err: p.err})
				}
				return events
			}
			events = p.onLine(line, events)
		case stateBodyLength:
			n := int64(len(b))
			if n > p.remaining {
				n = p.remaining
			}
			events = append(events, Event{Kind: Body, Data: clone(b[:n])})
			b = b[n:]
			p.remaining -= n
			if p.remaining == 0 {
				events = p.complete(events)
			}
		case stateBodyUntilClose:
			events = append(events, Event{Kind: Body, Data: clone(b)})
			b = nil
		}
	}
	return events
}

// takeLine accumulates bytes up to and including the next LF. It
// returns the line without its terminator, the unconsumed rest of b,
// and whether a full line was found.
func (p *Parser) takeLine(b []byte) (line, rest []byte, ok bool) {
	i := bytes.IndexByte(b, '\n')
	n := len(b)
	if i >= 0 {
		n = i + 1
	}
	if p.headerSize+n > p.maxHeaderBytes {
		p.fail(fmt.Errorf("%w: exceeds %d bytes", ErrHeaderOverflow, p.maxHeaderBytes))
		return nil, nil, false
	}
	p.headerSize += n
	p.line = append(p.line, b[:n]...)
	if i < 0 {
		return nil, nil, false
	}

	line = p.line[:len(p.line)-1]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	p.line = p.line[:0]
	return line, b[n:], true
}

func (p *Parser) onLine(line []byte, events []Event) []Event {
	if p.state == stateStatusLine {
		if len(line) == 0 {
			// Stray empty lines ahead of a status line are ignored.
			p.headerSize = 0
			return events
		}
		code, err := parseStatusLine(line)
		if err != nil {
			return p.failEvent(err, events)
		}
		p.code = code
		p.state = stateHeaderLine
		return append(events, Event{Kind: Status, Code: code})
	}

	if len(line) == 0 {
		events = append(events, Event{Kind: HeadersComplete})
		return p.startBody(events)
	}

	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return p.failEvent(fmt.Errorf("%w: %q", ErrInvalidHeader, line), events)
	}
	name := line[:colon]
	if !httpguts.ValidHeaderFieldName(string(name)) {
		return p.failEvent(fmt.Errorf("%w: field name %q", ErrInvalidHeader, name), events)
	}
	value := bytes.Trim(line[colon+1:], " \t")

	if bytes.EqualFold(name, contentLength) {
		n, err := strconv.ParseInt(string(value), 10, 64)
		if err != nil || n < 0 || (p.length >= 0 && p.length != n) {
			return p.failEvent(fmt.Errorf("%w: %q", ErrInvalidContentLength, value), events)
		}
		p.length = n
	}

	return append(events,
		Event{Kind: HeaderField, Data: clone(name)},
		Event{Kind: HeaderValue, Data: clone(value)},
	)
}

func (p *Parser) startBody(events []Event) []Event {
	switch {
	case p.code < 200 || p.code == 204 || p.code == 304:
		return p.complete(events)
	case p.length == 0:
		return p.complete(events)
	case p.length > 0:
		p.remaining = p.length
		p.state = stateBodyLength
	default:
		p.state = stateBodyUntilClose
	}
	return events
}

func (p *Parser) complete(events []Event) []Event {
	events = append(events, Event{Kind: MessageComplete})
	p.Reset()
	return events
}

func (p *Parser) fail(err error) {
	p.err = err
	p.state = stateFailed
	p.line = p.line[:0]
}

func (p *Parser) failEvent(err error, events []Event) []Event {
	p.fail(err)
	return append(events, Event{Kind: Error, Err: err})
}

// parseStatusLine parses "HTTP/d.d SSS[ reason]".
func parseStatusLine(line []byte) (int, error) {
	const prefix = "HTTP/"
	if len(line) < len(prefix)+3+1+3 || string(line[:len(prefix)]) != prefix {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatusLine, line)
	}
	v := line[len(prefix):]
	if !isDigit(v[0]) || v[1] != '.' || !isDigit(v[2]) || v[3] != ' ' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatusLine, line)
	}
	s := v[4:]
	if len(s) < 3 || !isDigit(s[0]) || !isDigit(s[1]) || !isDigit(s[2]) || (len(s) > 3 && s[3] != ' ') {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatusLine, line)
	}
	code := int(s[0]-'0')*100 + int(s[1]-'0')*10 + int(s[2]-'0')
	if code < 100 {
		return 0, fmt.Errorf("%w: status %d", ErrInvalidStatusLine, code)
	}
	return code, nil
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
