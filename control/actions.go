// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/huddle-chat/huddle/lib/codec"
	"github.com/huddle-chat/huddle/realtime"
)

// Action names.
const (
	ActionVisibility = "visibility"
	ActionNetwork    = "network"
	ActionReconnect  = "reconnect"
	ActionStatus     = "status"
)

// VisibilityRequest is the body of a visibility action.
type VisibilityRequest struct {
	Hidden bool `cbor:"hidden"`
}

// NetworkRequest is the body of a network action.
type NetworkRequest struct {
	Online bool `cbor:"online"`
}

// ReconnectRequest is the body of a reconnect action.
type ReconnectRequest struct {
	Manager string `cbor:"manager"`
	Topic   string `cbor:"topic"`
}

// StatusResponse is the data of a status action. It also backs the
// CLI's --json output.
type StatusResponse struct {
	Managers []ManagerStatus `json:"managers"`
}

// ManagerStatus is one manager's view.
type ManagerStatus struct {
	Name    string                 `json:"name"`
	Started bool                   `json:"started"`
	Topics  []realtime.TopicStatus `json:"topics"`
}

// Server is the daemon side of the control socket.
type Server struct {
	socket   *SocketServer
	signals  *realtime.Signals
	managers []*realtime.Manager
}

// NewServer creates a Server that emits environment events into
// signals and serves reconnect and status for managers. Managers are
// addressed by Name.
func NewServer(socketPath string, signals *realtime.Signals, managers []*realtime.Manager, logger *slog.Logger) (*Server, error) {
	if signals == nil {
		return nil, errors.New("control: signals are required")
	}
	seen := make(map[string]bool)
	for _, manager := range managers {
		if manager.Name() == "" || seen[manager.Name()] {
			return nil, fmt.Errorf("control: manager names must be unique and non-empty, got %q", manager.Name())
		}
		seen[manager.Name()] = true
	}

	server := &Server{
		socket:   NewSocketServer(socketPath, logger),
		signals:  signals,
		managers: managers,
	}
	server.socket.Handle(ActionVisibility, server.handleVisibility)
	server.socket.Handle(ActionNetwork, server.handleNetwork)
	server.socket.Handle(ActionReconnect, server.handleReconnect)
	server.socket.Handle(ActionStatus, server.handleStatus)
	return server, nil
}

// Serve serves until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	return s.socket.Serve(ctx)
}

// Ready is closed once the socket is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.socket.Ready()
}

func (s *Server) handleVisibility(ctx context.Context, raw []byte) (any, error) {
	var request VisibilityRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid visibility request: %w", err)
	}
	if request.Hidden {
		s.signals.Emit(realtime.EnvironmentHidden)
	} else {
		s.signals.Emit(realtime.EnvironmentVisible)
	}
	return nil, nil
}

func (s *Server) handleNetwork(ctx context.Context, raw []byte) (any, error) {
	var request NetworkRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid network request: %w", err)
	}
	if request.Online {
		s.signals.Emit(realtime.EnvironmentOnline)
	} else {
		s.signals.Emit(realtime.EnvironmentOffline)
	}
	return nil, nil
}

func (s *Server) handleReconnect(ctx context.Context, raw []byte) (any, error) {
	var request ReconnectRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid reconnect request: %w", err)
	}
	if request.Topic == "" {
		return nil, errors.New("missing required field: topic")
	}
	manager := s.manager(request.Manager)
	if manager == nil {
		return nil, fmt.Errorf("unknown manager %q", request.Manager)
	}
	registered := slices.ContainsFunc(manager.Snapshot(), func(status realtime.TopicStatus) bool {
		return status.Topic == request.Topic
	})
	if !registered {
		return nil, fmt.Errorf("topic %q is not registered on %s", request.Topic, request.Manager)
	}
	manager.ReconnectChannel(request.Topic)
	return nil, nil
}

func (s *Server) handleStatus(ctx context.Context, raw []byte) (any, error) {
	response := StatusResponse{Managers: make([]ManagerStatus, 0, len(s.managers))}
	for _, manager := range s.managers {
		response.Managers = append(response.Managers, ManagerStatus{
			Name:    manager.Name(),
			Started: manager.Started(),
			Topics:  manager.Snapshot(),
		})
	}
	return response, nil
}

func (s *Server) manager(name string) *realtime.Manager {
	for _, manager := range s.managers {
		if manager.Name() == name {
			return manager
		}
	}
	return nil
}
