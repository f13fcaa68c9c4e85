// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package connstate keeps per-connection sessions alive exactly as long
// as the connections they belong to.
//
// A Listener maps connection identifiers to sessions. When it learns
// that a tracked connection closed, it cancels the session through its
// Canceler and forgets it. Install Listener.Hook on connections with
// conn.WithCloseHook, or on requests with asynchttp.WithCloseHook, to
// have it told of every close.
package connstate

import (
	"log/slog"
	"sync"

	"github.com/gogama/asynchttp/conn"
)

// A Cause is the reason for a connection state notification.
type Cause int

const (
	// Accepted means the connection was established.
	Accepted Cause = iota
	// Closed means the connection was closed.
	Closed
	// Upgraded means the connection switched to another protocol.
	Upgraded
)

var causeNames = []string{
	"accepted",
	"closed",
	"upgraded",
}

// String returns the name of the cause, or "unknown".
func (c Cause) String() string {
	if c < 0 || int(c) >= len(causeNames) {
		return "unknown"
	}
	return causeNames[c]
}

// A Session is the subscription state attached to one connection.
type Session struct {
	// Key identifies what the subscription is for.
	Key string
	// Token identifies the subscription among others with the same
	// Key.
	Token uint64
}

// A Canceler cancels subscriptions.
type Canceler interface {
	Cancel(key string, token uint64)
}

// The CancelerFunc type is an adapter to allow the use of ordinary
// functions as cancelers.
type CancelerFunc func(key string, token uint64)

// Cancel calls f(key, token).
func (f CancelerFunc) Cancel(key string, token uint64) {
	f(key, token)
}

// Option is a functional option for configuring a Listener.
type Option func(*Listener)

// WithLogger sets the listener's logger. Default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(l *Listener) {
		l.logger = log
	}
}

// A Listener cancels the sessions of connections as they close. It is
// safe for concurrent use by multiple goroutines.
type Listener struct {
	canceler Canceler
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[uint64]Session
}

// NewListener returns a listener which cancels sessions through c.
func NewListener(c Canceler, opts ...Option) *Listener {
	if c == nil {
		panic("asynchttp/connstate: nil canceler")
	}

	l := &Listener{
		canceler: c,
		logger:   slog.Default(),
		sessions: make(map[uint64]Session),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Track attaches s to the connection id, replacing any session already
// attached.
func (l *Listener) Track(id uint64, s Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions[id] = s
}

// Session returns the session attached to the connection id.
func (l *Listener) Session(id uint64) (Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sessions[id]
	return s, ok
}

// Len returns the number of tracked connections.
func (l *Listener) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

// StateChanged is told that the state of connection id changed for the
// given cause. If the connection is tracked and closed, its session is
// cancelled and forgotten. Other causes only log.
func (l *Listener) StateChanged(id uint64, cause Cause) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sessions[id]
	if !ok {
		return
	}
	if cause != Closed {
		l.logger.Debug("connection state changed", "connection", id, "cause", cause)
		return
	}

	l.logger.Debug("cancelling session", "connection", id, "key", s.Key)
	l.canceler.Cancel(s.Key, s.Token)
	delete(l.sessions, id)
	l.logger.Debug("sessions remaining", "count", len(l.sessions))
}

// Hook returns a close hook which reports each close to the listener.
func (l *Listener) Hook() conn.CloseHook {
	return func(id uint64) {
		l.StateChanged(id, Closed)
	}
}
