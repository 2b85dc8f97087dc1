// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/huddle-chat/huddle/lib/codec"
	"github.com/huddle-chat/huddle/lib/testutil"
	"github.com/huddle-chat/huddle/realtime"
)

const waitTimeout = 5 * time.Second

// stubClient satisfies realtime.Client for managers that are never
// started.
type stubClient struct{}

func (stubClient) Session(ctx context.Context) (*realtime.Session, error) {
	return &realtime.Session{UserID: "@ada:huddle.test", AccessToken: "token-1"}, nil
}
func (stubClient) RealtimeToken() string          { return "" }
func (stubClient) SetRealtimeToken(string)        {}
func (stubClient) RemoveChannel(realtime.Channel) {}

type eventLog struct {
	mu     sync.Mutex
	events []realtime.EnvironmentEvent
}

func (l *eventLog) record(event realtime.EnvironmentEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) snapshot() []realtime.EnvironmentEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.events)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	client   *Client
	socket   string
	log      *eventLog
	messages *realtime.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	signals := realtime.NewSignals()
	log := &eventLog{}
	signals.Listen(log.record)

	messages := realtime.New(stubClient{}, realtime.Config{Name: "messages", Logger: discardLogger()})
	notifications := realtime.New(stubClient{}, realtime.Config{Name: "notifications", Logger: discardLogger()})
	noop := func(realtime.Client) realtime.Channel { return nil }
	messages.AddChannel("messages:!general:huddle.test", noop, realtime.Callbacks{})
	messages.AddChannel("messages:!random:huddle.test", noop, realtime.Callbacks{})
	notifications.AddChannel("notifications:@ada:huddle.test", noop, realtime.Callbacks{})

	socket := filepath.Join(testutil.SocketDir(t), "control.sock")
	server, err := NewServer(socket, signals, []*realtime.Manager{messages, notifications}, discardLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, waitTimeout, "Serve did not return"); err != nil {
			t.Errorf("Serve = %v", err)
		}
	})
	testutil.RequireClosed(t, server.Ready(), waitTimeout, "server never became ready")

	return &fixture{client: NewClient(socket), socket: socket, log: log, messages: messages}
}

func TestVisibilityAndNetwork(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	steps := []struct {
		name string
		call func() error
		want realtime.EnvironmentEvent
	}{
		{"hidden", func() error { return f.client.SetVisibility(ctx, true) }, realtime.EnvironmentHidden},
		{"visible", func() error { return f.client.SetVisibility(ctx, false) }, realtime.EnvironmentVisible},
		{"offline", func() error { return f.client.SetNetwork(ctx, false) }, realtime.EnvironmentOffline},
		{"online", func() error { return f.client.SetNetwork(ctx, true) }, realtime.EnvironmentOnline},
	}
	var want []realtime.EnvironmentEvent
	for _, step := range steps {
		if err := step.call(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		want = append(want, step.want)
	}

	if got := f.log.snapshot(); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)

	status, err := f.client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(status.Managers) != 2 {
		t.Fatalf("managers = %d, want 2", len(status.Managers))
	}

	messages := status.Managers[0]
	if messages.Name != "messages" || messages.Started {
		t.Errorf("first manager = %+v, want unstarted messages", messages)
	}
	var topics []string
	for _, topic := range messages.Topics {
		topics = append(topics, topic.Topic)
	}
	want := []string{"messages:!general:huddle.test", "messages:!random:huddle.test"}
	if !slices.Equal(topics, want) {
		t.Errorf("messages topics = %v, want %v", topics, want)
	}
	if status.Managers[1].Name != "notifications" || len(status.Managers[1].Topics) != 1 {
		t.Errorf("second manager = %+v, want notifications with one topic", status.Managers[1])
	}
}

func TestReconnect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.client.Reconnect(ctx, "messages", "messages:!general:huddle.test"); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}

	tests := []struct {
		name    string
		manager string
		topic   string
		want    string
	}{
		{"unknown manager", "calls", "messages:!general:huddle.test", `unknown manager "calls"`},
		{"unknown topic", "messages", "messages:!missing:huddle.test", "is not registered"},
		{"topic on other manager", "notifications", "messages:!general:huddle.test", "is not registered"},
		{"missing topic", "messages", "", "missing required field: topic"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := f.client.Reconnect(ctx, test.manager, test.topic)
			var controlErr *Error
			if !errors.As(err, &controlErr) {
				t.Fatalf("Reconnect error = %v, want *control.Error", err)
			}
			if controlErr.Action != ActionReconnect {
				t.Errorf("Action = %q, want %q", controlErr.Action, ActionReconnect)
			}
			if !strings.Contains(controlErr.Message, test.want) {
				t.Errorf("Message = %q, want it to contain %q", controlErr.Message, test.want)
			}
		})
	}
}

func TestUnknownAction(t *testing.T) {
	f := newFixture(t)
	err := f.client.Call(context.Background(), "shutdown", nil, nil)
	var controlErr *Error
	if !errors.As(err, &controlErr) || !strings.Contains(controlErr.Message, `unknown action "shutdown"`) {
		t.Fatalf("Call error = %v, want unknown action", err)
	}
}

func TestMissingAction(t *testing.T) {
	f := newFixture(t)

	conn, err := net.DialTimeout("unix", f.socket, waitTimeout)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := codec.NewEncoder(conn).Encode(map[string]any{"hidden": true}); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if response.OK || response.Error != "missing required field: action" {
		t.Errorf("response = %+v, want missing action error", response)
	}
	if got := f.log.snapshot(); len(got) != 0 {
		t.Errorf("events = %v, want none", got)
	}
}

func TestCallWithoutDaemon(t *testing.T) {
	client := NewClient(filepath.Join(testutil.SocketDir(t), "absent.sock"))
	err := client.SetVisibility(context.Background(), true)
	if err == nil {
		t.Fatal("SetVisibility succeeded without a daemon")
	}
	var controlErr *Error
	if errors.As(err, &controlErr) {
		t.Errorf("connection failure returned *control.Error: %v", err)
	}
}

func TestNewServerRejectsDuplicateNames(t *testing.T) {
	first := realtime.New(stubClient{}, realtime.Config{Name: "messages", Logger: discardLogger()})
	second := realtime.New(stubClient{}, realtime.Config{Name: "messages", Logger: discardLogger()})
	if _, err := NewServer("/tmp/unused.sock", realtime.NewSignals(), []*realtime.Manager{first, second}, discardLogger()); err == nil {
		t.Fatal("NewServer accepted duplicate manager names")
	}
}
