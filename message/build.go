// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package message

import (
	"bytes"
	"errors"
	"strconv"
)

// ErrUpgradeConnection is returned by Build when asked to send the
// Upgrade connection directive.
var ErrUpgradeConnection = errors.New("asynchttp/message: upgrade connection directive not supported")

const crlf = "\r\n"

// Build serializes a request: the request line, every field in fields
// in order, one Connection field carrying the normalized connection
// directive, and, if body is non-empty, a Content-Length field equal to
// len(body) followed by the body. The message always ends with an empty
// line.
//
// Parameter fields may be nil.
func Build(line RequestLine, fields *Fields, ct ConnectionType, body []byte) ([]byte, error) {
	if err := line.Validate(); err != nil {
		return nil, err
	}
	ct = ct.Normalize()
	if ct == Upgrade {
		return nil, ErrUpgradeConnection
	}

	var b bytes.Buffer
	b.WriteString(line.String())
	b.WriteString(crlf)

	if fields != nil {
		for _, f := range fields.list {
			b.WriteString(f.Name)
			b.WriteString(": ")
			b.WriteString(f.Value)
			b.WriteString(crlf)
		}
	}

	b.WriteString("Connection: ")
	b.WriteString(ct.String())
	b.WriteString(crlf)

	if len(body) > 0 {
		b.WriteString("Content-Length: ")
		b.WriteString(strconv.Itoa(len(body)))
		b.WriteString(crlf)
		b.WriteString(crlf)
		b.Write(body)
	}

	b.WriteString(crlf)
	return b.Bytes(), nil
}
