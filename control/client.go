// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net"
	"time"

	"github.com/huddle-chat/huddle/lib/codec"
)

const (
	dialTimeout         = 5 * time.Second
	responseReadTimeout = 30 * time.Second
	maxResponseSize     = 1024 * 1024
)

// Error is returned by Call when the daemon answers ok=false.
type Error struct {
	Action  string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("control: %s failed: %s", e.Action, e.Message)
}

// Client calls the daemon's control socket.
type Client struct {
	socketPath string
}

// NewClient returns a client for socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Call sends action with fields and decodes the response data into
// result when both are present. An ok=false answer is returned as
// *Error; transport failures are plain errors.
func (c *Client) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+1)
	maps.Copy(request, fields)
	request["action"] = action

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("control: calling %s on %s: %w", action, c.socketPath, err)
	}
	if !response.OK {
		return &Error{Action: action, Message: response.Error}
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("control: decoding %s response: %w", action, err)
		}
	}
	return nil
}

// SetVisibility reports the client as hidden or visible.
func (c *Client) SetVisibility(ctx context.Context, hidden bool) error {
	return c.Call(ctx, ActionVisibility, map[string]any{"hidden": hidden}, nil)
}

// SetNetwork reports connectivity as online or offline.
func (c *Client) SetNetwork(ctx context.Context, online bool) error {
	return c.Call(ctx, ActionNetwork, map[string]any{"online": online}, nil)
}

// Reconnect asks manager to resubscribe topic now.
func (c *Client) Reconnect(ctx context.Context, manager, topic string) error {
	return c.Call(ctx, ActionReconnect, map[string]any{"manager": manager, "topic": topic}, nil)
}

// Status returns every manager's topics.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var status StatusResponse
	if err := c.Call(ctx, ActionStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) send(ctx context.Context, request any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	deadline := time.Now().Add(responseReadTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetReadDeadline(deadline)

	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &response, nil
}
