// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Command asynchttp-get sends an HTTP/1.1 request to a server, prints
// each state transition of the exchange to standard error, and copies
// the response body to standard output.
//
// Usage:
//
//	asynchttp-get -host example.com [-service 80] [-method GET] [-target /]
//	              [-body data] [-keep-alive] [-count n] [-retries n]
//	              [-timeout d] [-v]
//
// With -count greater than one the request is sent repeatedly, reusing
// the connection while the server keeps it alive.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gogama/asynchttp"
	"github.com/gogama/asynchttp/connstate"
	"github.com/gogama/asynchttp/message"
	"github.com/gogama/asynchttp/reactor"
	"github.com/gogama/asynchttp/retry"
	"github.com/gogama/asynchttp/timeout"
	"github.com/google/uuid"
)

func main() {
	cfg, err := parseConfig(os.Args[0], os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err = run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var errFailed = errors.New("exchange failed")

func run(ctx context.Context, cfg *config, stdout, stderr io.Writer) error {
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	loop := reactor.New()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		_ = loop.Run(ctx)
	}()

	listener := connstate.NewListener(connstate.CancelerFunc(func(target string, request uint64) {
		logger.Info("connection closed", "target", target, "request", request)
	}), connstate.WithLogger(logger))

	r, err := asynchttp.NewRequest(loop, cfg.Host, cfg.Service,
		asynchttp.WithLogger(logger),
		asynchttp.WithTimeoutPolicy(timeout.Fixed(cfg.Timeout)),
		asynchttp.WithRetryPolicy(retry.NewPolicy(retry.Times(cfg.Retries).And(retry.TransientErr), retry.DefaultWaiter)),
		asynchttp.WithCloseHook(listener.Hook()),
	)
	if err != nil {
		return err
	}
	defer r.End()

	if err = r.SetRequestLine(message.RequestLine{Method: cfg.Method, Target: cfg.Target}); err != nil {
		return err
	}
	if err = r.SetHeaderField("Host", asynchttp.HostHeader(cfg.Host, cfg.Service)); err != nil {
		return err
	}
	if cfg.KeepAlive {
		r.SetConnectionType(message.KeepAlive)
	}
	if cfg.Body != "" {
		r.SetBody([]byte(cfg.Body))
	}

	done := make(chan message.Response, 1)
	r.OnStateChange(func(s message.State, resp message.Response) {
		fmt.Fprintf(stderr, "* %s", s)
		if resp.Received != 0 {
			fmt.Fprintf(stderr, " %d", resp.Received)
		}
		fmt.Fprintln(stderr)
		if s == message.Sending {
			if c := r.Connection(); c != nil {
				listener.Track(c.ID(), connstate.Session{Key: cfg.Target, Token: r.ID()})
			}
		}
		if s == message.Done {
			done <- resp
		}
	})
	r.OnBody(func(chunk []byte) {
		_, _ = stdout.Write(chunk)
	})

	for i := 0; i < cfg.Count; i++ {
		if err = r.SetHeaderField("X-Request-Id", uuid.NewString()); err != nil {
			return err
		}
		r.Send()

		var resp message.Response
		select {
		case resp = <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		if resp.StatusCode == 0 {
			return fmt.Errorf("%w: %w", errFailed, resp.Err)
		}
	}
	return nil
}
