// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package asynchttp provides an asynchronous HTTP/1.1 client engine which
runs every exchange on a single-goroutine reactor loop.

Start a loop, then create a Request and register callbacks before
sending it.

	loop := reactor.New()
	go loop.Run(ctx)

	r, err := asynchttp.NewRequest(loop, "example.com", "http")
	...
	r.SetRequestLine(message.RequestLine{Method: "GET", Target: "/"})
	r.SetHeaderField("Host", "example.com")
	r.OnBody(func(chunk []byte) {
		os.Stdout.Write(chunk)
	})
	r.OnStateChange(func(s message.State, resp message.Response) {
		if s == message.Done {
			log.Printf("status %d, err %v", resp.StatusCode, resp.Err)
		}
	})
	r.Send()

Each Send runs one exchange: resolve, connect, write the request, read
the header block, then read the body. The body is framed by
Content-Length when the response has one, and otherwise read until the
server closes the connection. Every exchange reports Done exactly once.
The final status code is message.StatusCompleted when the exchange ended
normally, including when the server closed the connection, and zero when
it failed.

When both sides agree to keep the connection alive, the next Send on the
same Request reuses the connection and goes straight to writing.

For many requests with shared settings, use a Client. It also shares
name resolution between requests to the same host.

	client := &asynchttp.Client{
		Loop:          loop,
		TimeoutPolicy: timeout.Fixed(10 * time.Second),
		RetryPolicy:   retry.NewPolicy(retry.Times(3).And(retry.TransientErr), retry.DefaultWaiter),
	}
	client.Get("example.com", "http", "/", func(resp message.Response) {
		...
	})

To hook into every state transition, install a handler into the
appropriate handler chain:

	handlers := &asynchttp.HandlerGroup{}
	handlers.PushBack(message.HeaderReceived, asynchttp.HandlerFunc(
		func(_ message.State, resp *message.Response) {
			log.Printf("received status %d", resp.Received)
		}))
	client.Handlers = handlers
*/
package asynchttp
