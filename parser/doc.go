// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package parser provides an incremental HTTP/1.x response parser.
//
// A Parser is fed response bytes in arbitrarily sized pieces, as they
// arrive off a connection, and returns the parse Events each piece
// produced. Pieces may be split at any byte, including in the middle of
// the status line, a header field, or the CRLF separating two lines.
//
// The parser frames the response body itself: a body ends after
// Content-Length bytes, or, without a Content-Length, when the caller
// stops feeding bytes because the peer closed the connection. Responses
// to 1xx, 204, and 304 have no body. Chunked transfer coding is not
// decoded: chunked bodies surface as raw body bytes read until close.
//
// Once a message is complete, further bytes begin a new message.
package parser
