// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/huddle-chat/huddle/lib/codec"
	"github.com/huddle-chat/huddle/lib/netutil"
)

// ActionFunc handles one action. raw is the full CBOR request,
// including the "action" field. A nil result produces {ok: true}.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// Response is the envelope of every reply.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

const (
	// readTimeout bounds how long a client may take to send its
	// request.
	readTimeout = 10 * time.Second

	writeTimeout = 10 * time.Second

	maxRequestSize = 64 * 1024
)

// SocketServer serves actions on a Unix socket, one request per
// connection.
type SocketServer struct {
	socketPath string
	handlers   map[string]ActionFunc
	logger     *slog.Logger

	ready  chan struct{}
	active sync.WaitGroup
}

// NewSocketServer creates a server for socketPath. Register actions
// with Handle before calling Serve.
func NewSocketServer(socketPath string, logger *slog.Logger) *SocketServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocketServer{
		socketPath: socketPath,
		handlers:   make(map[string]ActionFunc),
		logger:     logger,
		ready:      make(chan struct{}),
	}
}

// Handle registers handler for action. Panics on a duplicate.
func (s *SocketServer) Handle(action string, handler ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("control.SocketServer: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// Ready is closed once the socket is listening.
func (s *SocketServer) Ready() <-chan struct{} {
	return s.ready
}

// Serve listens until ctx is cancelled, then waits for in-flight
// requests. A stale socket file is removed first; the socket file is
// removed on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("control: removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("control: listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		return fmt.Errorf("control: restricting socket permissions: %w", err)
	}

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			listener.Close()
		case <-stopped:
		}
	}()

	s.logger.Info("control socket listening", "path", s.socketPath)
	close(s.ready)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.active.Add(1)
		go func() {
			defer s.active.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.active.Wait()
	return nil
}

func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw); err != nil {
		if netutil.IsExpectedCloseError(err) {
			return
		}
		if netutil.IsTimeout(err) {
			s.logger.Debug("control client sent no request", "timeout", readTimeout)
			return
		}
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}

	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if header.Action == "" {
		s.writeError(conn, "missing required field: action")
		return
	}
	handler, exists := s.handlers[header.Action]
	if !exists {
		s.writeError(conn, fmt.Sprintf("unknown action %q", header.Action))
		return
	}

	requestID := uuid.NewString()
	result, err := handler(ctx, []byte(raw))
	if err != nil {
		s.logger.Info("control action failed",
			"action", header.Action,
			"request_id", requestID,
			"error", err,
		)
		s.writeError(conn, err.Error())
		return
	}
	s.logger.Debug("control action handled", "action", header.Action, "request_id", requestID)
	s.writeSuccess(conn, result)
}

func (s *SocketServer) writeError(conn net.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(Response{Error: message}); err != nil {
		s.logWriteFailure("error", err)
	}
}

func (s *SocketServer) writeSuccess(conn net.Conn, result any) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeError(conn, fmt.Sprintf("internal: marshaling response: %v", err))
			return
		}
		response.Data = data
	}
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logWriteFailure("success", err)
	}
}

// logWriteFailure logs a failed response write. A client that hung up
// first is not worth a warning.
func (s *SocketServer) logWriteFailure(kind string, err error) {
	if netutil.IsExpectedCloseError(err) {
		s.logger.Debug("control client went away before the response", "response", kind, "error", err)
		return
	}
	s.logger.Warn("writing control response failed", "response", kind, "error", err)
}
