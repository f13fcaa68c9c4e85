// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package asynchttp

import (
	"github.com/gogama/asynchttp/message"
	"go.opentelemetry.io/otel/propagation"
)

// fieldsCarrier adapts request header fields so trace context can be
// injected into an outgoing request.
type fieldsCarrier struct {
	fields *message.Fields
}

var _ propagation.TextMapCarrier = fieldsCarrier{}

func (c fieldsCarrier) Get(key string) string {
	v, _ := c.fields.Get(key)
	return v
}

// Set ignores keys which are not valid field names.
func (c fieldsCarrier) Set(key, value string) {
	_ = c.fields.Set(key, value)
}

func (c fieldsCarrier) Keys() []string {
	all := c.fields.All()
	keys := make([]string, len(all))
	for i := range all {
		keys[i] = all[i].Name
	}
	return keys
}
