// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package message

import (
	"errors"
	"fmt"
	"net/textproto"

	"golang.org/x/net/http/httpguts"
)

var (
	// ErrInvalidField is returned when a header field name or value
	// is not valid on the wire.
	ErrInvalidField = errors.New("asynchttp/message: invalid header field")
	// ErrReservedField is returned when attempting to set a header
	// field which Build writes itself.
	ErrReservedField = errors.New("asynchttp/message: reserved header field")
)

// A Field is one header field name and its value.
type Field struct {
	Name  string
	Value string
}

// Fields is an ordered mapping of header field names to values. Names
// are canonicalized with textproto.CanonicalMIMEHeaderKey. A name keeps
// the position where it was first set; setting it again replaces the
// value in place.
//
// The zero value is an empty mapping ready to use.
type Fields struct {
	list  []Field
	index map[string]int
}

// Set assigns value to the field name.
//
// Set returns ErrInvalidField if the name or value contains characters
// not permitted by RFC 7230, and ErrReservedField for Connection and
// Content-Length.
func (f *Fields) Set(name, value string) error {
	if !httpguts.ValidHeaderFieldName(name) {
		return fmt.Errorf("%w: name %q", ErrInvalidField, name)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return fmt.Errorf("%w: value for %q", ErrInvalidField, name)
	}
	key := textproto.CanonicalMIMEHeaderKey(name)
	if key == "Connection" || key == "Content-Length" {
		return fmt.Errorf("%w: %s", ErrReservedField, key)
	}

	if f.index == nil {
		f.index = make(map[string]int)
	}
	if i, ok := f.index[key]; ok {
		f.list[i].Value = value
		return nil
	}
	f.index[key] = len(f.list)
	f.list = append(f.list, Field{Name: key, Value: value})
	return nil
}

// Get returns the value of the field name, and whether it is set.
func (f *Fields) Get(name string) (string, bool) {
	i, ok := f.index[textproto.CanonicalMIMEHeaderKey(name)]
	if !ok {
		return "", false
	}
	return f.list[i].Value, true
}

// Del removes the field name. The relative order of the remaining
// fields is unchanged.
func (f *Fields) Del(name string) {
	key := textproto.CanonicalMIMEHeaderKey(name)
	i, ok := f.index[key]
	if !ok {
		return
	}
	f.list = append(f.list[:i], f.list[i+1:]...)
	delete(f.index, key)
	for j := i; j < len(f.list); j++ {
		f.index[f.list[j].Name] = j
	}
}

// Len returns the number of fields.
func (f *Fields) Len() int {
	return len(f.list)
}

// All returns a copy of the fields in wire order.
func (f *Fields) All() []Field {
	out := make([]Field, len(f.list))
	copy(out, f.list)
	return out
}

// Clone returns a deep copy of f.
func (f *Fields) Clone() Fields {
	var g Fields
	for _, x := range f.list {
		_ = g.Set(x.Name, x.Value)
	}
	return g
}
