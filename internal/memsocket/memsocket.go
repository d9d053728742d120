// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package memsocket is a minimal client for the out-of-process memory
// worker, speaking newline-delimited JSON over a Unix domain socket.
// The protocol is bespoke to this system, not gRPC/Thrift, so a plain
// net.Dial client is the correct match rather than a generated stub.
package memsocket

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/hookguard/sentinel/internal/breaker"
)

// Request is one newline-delimited JSON request to the worker.
type Request struct {
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the worker's newline-delimited JSON reply.
type Response struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client talks to the memory worker over a Unix domain socket, with
// calls guarded by the client's own Breaker (NewClient gives each
// client a fresh one).
type Client struct {
	SocketPath string
	Timeout    time.Duration
	Breaker    *breaker.ServiceBreaker
}

// NewClient returns a client bound to socketPath with a fresh breaker
// using the package's default config.
func NewClient(socketPath string) *Client {
	return &Client{
		SocketPath: socketPath,
		Timeout:    2 * time.Second,
		Breaker:    breaker.NewServiceBreaker(breaker.DefaultServiceBreakerConfig()),
	}
}

// Call sends req and decodes the worker's response, refusing the call
// outright if the breaker is open.
func (c *Client) Call(req Request) (Response, error) {
	var resp Response
	err := c.Breaker.Execute(func() error {
		conn, err := net.DialTimeout("unix", c.SocketPath, c.Timeout)
		if err != nil {
			return fmt.Errorf("memsocket: dial: %w", err)
		}
		defer conn.Close()
		_ = conn.SetDeadline(time.Now().Add(c.Timeout))

		line, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("memsocket: encode request: %w", err)
		}
		line = append(line, '\n')
		if _, err := conn.Write(line); err != nil {
			return fmt.Errorf("memsocket: write: %w", err)
		}

		scanner := bufio.NewScanner(conn)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("memsocket: read: %w", err)
			}
			return fmt.Errorf("memsocket: worker closed connection without a reply")
		}
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			return fmt.Errorf("memsocket: decode response: %w", err)
		}
		if !resp.OK {
			return fmt.Errorf("memsocket: worker error: %s", resp.Error)
		}
		return nil
	})
	return resp, err
}
