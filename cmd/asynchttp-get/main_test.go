// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := parseConfig("test", []string{"-host", "example.com"})

		require.NoError(t, err)
		assert.Equal(t, &config{
			Host:    "example.com",
			Service: "http",
			Method:  "GET",
			Target:  "/",
			Count:   1,
			Timeout: 30 * time.Second,
		}, cfg)
	})
	t.Run("all flags", func(t *testing.T) {
		cfg, err := parseConfig("test", []string{
			"-host", "127.0.0.1", "-service", "8080", "-method", "POST",
			"-target", "/a", "-body", "x", "-keep-alive", "-count", "3",
			"-retries", "2", "-timeout", "5s", "-v",
		})

		require.NoError(t, err)
		assert.Equal(t, &config{
			Host:      "127.0.0.1",
			Service:   "8080",
			Method:    "POST",
			Target:    "/a",
			Body:      "x",
			KeepAlive: true,
			Count:     3,
			Retries:   2,
			Timeout:   5 * time.Second,
			Verbose:   true,
		}, cfg)
	})
	t.Run("invalid", func(t *testing.T) {
		testCases := []struct {
			name  string
			args  []string
			field string
		}{
			{"missing host", []string{}, "host"},
			{"bad host", []string{"-host", "exa mple"}, "host"},
			{"bad method", []string{"-host", "h", "-method", "BREW"}, "method"},
			{"bad target", []string{"-host", "h", "-target", "a"}, "target"},
			{"zero count", []string{"-host", "h", "-count", "0"}, "count"},
			{"too many retries", []string{"-host", "h", "-retries", "11"}, "retries"},
			{"negative timeout", []string{"-host", "h", "-timeout", "-1s"}, "timeout"},
		}
		for _, testCase := range testCases {
			t.Run(testCase.name, func(t *testing.T) {
				_, err := parseConfig("test", testCase.args)

				require.Error(t, err)
				var fe fieldErrors
				require.ErrorAs(t, err, &fe)
				require.Len(t, fe, 1)
				assert.Equal(t, testCase.field, fe[0].Field)
				assert.NotEmpty(t, fe[0].Err)
			})
		}
	})
	t.Run("required message", func(t *testing.T) {
		_, err := parseConfig("test", nil)

		assert.EqualError(t, err, `[{"field":"host","error":"This flag is required"}]`)
	})
	t.Run("unknown flag", func(t *testing.T) {
		_, err := parseConfig("test", []string{"-nope"})

		assert.Error(t, err)
	})
}

func TestRun(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	ids := make(chan string, 2)
	hosts := make(chan string, 2)
	go func() {
		nc, err := l.Accept()
		if err != nil {
			return
		}
		defer func() { _ = nc.Close() }()
		br := bufio.NewReader(nc)
		for i := 0; i < 2; i++ {
			req, err := http.ReadRequest(br)
			if err != nil {
				return
			}
			ids <- req.Header.Get("X-Request-Id")
			hosts <- req.Host
			_, _ = io.WriteString(nc, "HTTP/1.1 200 OK\r\nConnection: keep-alive\r\nContent-Length: 3\r\n\r\nhi\n")
		}
	}()

	var stdout, stderr bytes.Buffer
	cfg := &config{
		Host:      "127.0.0.1",
		Service:   strconv.Itoa(l.Addr().(*net.TCPAddr).Port),
		Method:    "GET",
		Target:    "/",
		KeepAlive: true,
		Count:     2,
		Timeout:   5 * time.Second,
	}

	err = run(context.Background(), cfg, &stdout, &stderr)

	require.NoError(t, err)
	assert.Equal(t, "hi\nhi\n", stdout.String())
	assert.Contains(t, stderr.String(), "* HEADER_RECEIVED 200\n")
	assert.Contains(t, stderr.String(), "* DONE 200\n")
	first, second := <-ids, <-ids
	assert.NotEqual(t, first, second)
	_, err = uuid.Parse(first)
	assert.NoError(t, err)
	assert.Equal(t, "127.0.0.1:"+cfg.Service, <-hosts)
}

func TestRun_Failure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	var stdout, stderr bytes.Buffer
	cfg := &config{
		Host:    "127.0.0.1",
		Service: strconv.Itoa(port),
		Method:  "GET",
		Target:  "/",
		Count:   1,
	}

	err = run(context.Background(), cfg, &stdout, &stderr)

	assert.ErrorIs(t, err, errFailed)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "* CREATED\n")
	assert.Contains(t, stderr.String(), "* DONE\n")
	assert.NotContains(t, stderr.String(), "* SENDING")
}
