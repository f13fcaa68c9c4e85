// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package timeout defines policies for the inactivity timeout armed on a
// connection while a request exchange is in progress. A generic
// interface for timeout policies is provided, Policy, along with
// several useful policy generating functions and built-in policies.
//
// The timeout is an inactivity timeout, not a deadline for the whole
// exchange: it is re-armed each time the exchange changes state and
// each time response body bytes arrive.
package timeout
