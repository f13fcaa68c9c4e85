// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package message contains the vocabulary shared by every layer of an
asynchttp exchange: the pieces an outbound HTTP/1.1 request is built from
(RequestLine, Fields, ConnectionType, and the Build function), the
lifecycle State of a request, and the Response accumulated while the
exchange runs.

Build produces the exact bytes written to the socket:

	line := message.RequestLine{Method: "POST", Target: "/key/abc", Major: 1, Minor: 1}
	var fields message.Fields
	_ = fields.Set("Content-Type", "application/json")
	b, err := message.Build(line, &fields, message.KeepAlive, []byte(`{"v":1}`))

yields

	POST /key/abc HTTP/1.1\r\n
	Content-Type: application/json\r\n
	Connection: keep-alive\r\n
	Content-Length: 7\r\n
	\r\n
	{"v":1}\r\n

Header fields are written in the order they were first set, followed by
exactly one Connection field. Connection and Content-Length are owned by
Build and cannot be set directly.
*/
package message
