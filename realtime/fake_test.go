// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/huddle-chat/huddle/lib/clock"
	"github.com/huddle-chat/huddle/lib/testutil"
)

const waitTimeout = 5 * time.Second

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeClient is an in-memory Client. Session blocks while gate is
// non-nil and open.
type fakeClient struct {
	mu            sync.Mutex
	sessionToken  string
	sessionErr    error
	appliedToken  string
	setTokenCalls int
	removed       []Channel
	gate          chan struct{}
	sessionCalls  chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		sessionToken: "token-1",
		sessionCalls: make(chan struct{}, 64),
	}
}

func (c *fakeClient) Session(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	gate := c.gate
	token, err := c.sessionToken, c.sessionErr
	c.mu.Unlock()

	select {
	case c.sessionCalls <- struct{}{}:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &Session{UserID: "@alice:huddle.chat", AccessToken: token}, nil
}

func (c *fakeClient) RealtimeToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appliedToken
}

func (c *fakeClient) SetRealtimeToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appliedToken = token
	c.setTokenCalls++
}

func (c *fakeClient) RemoveChannel(channel Channel) {
	c.mu.Lock()
	c.removed = append(c.removed, channel)
	c.mu.Unlock()
	if fake, ok := channel.(*fakeChannel); ok {
		fake.remove()
	}
}

func (c *fakeClient) setSession(token string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionToken, c.sessionErr = token, err
}

func (c *fakeClient) removedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.removed)
}

func (c *fakeClient) wasRemoved(channel Channel) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, removed := range c.removed {
		if removed == channel {
			return true
		}
	}
	return false
}

func (c *fakeClient) tokenCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setTokenCalls
}

// fakeChannel is a Channel whose status stream the test drives.
type fakeChannel struct {
	topic        string
	subscribeErr error

	mu      sync.Mutex
	state   ChannelState
	events  chan StatusEvent
	removed bool
}

func (c *fakeChannel) Topic() string { return c.topic }

func (c *fakeChannel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeChannel) Subscribe(ctx context.Context) (<-chan StatusEvent, error) {
	if c.subscribeErr != nil {
		return nil, c.subscribeErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.removed {
		c.state = StateJoining
	}
	return c.events, nil
}

// emit delivers a status as the transport would, updating the state
// to match. It is a no-op once the channel is removed.
func (c *fakeChannel) emit(status Status, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.removed {
		return
	}
	switch status {
	case StatusSubscribed:
		c.state = StateJoined
	case StatusClosed, StatusTimedOut:
		c.state = StateClosed
	case StatusChannelError:
		c.state = StateErrored
	}
	c.events <- StatusEvent{Status: status, Err: err}
}

func (c *fakeChannel) setState(state ChannelState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

func (c *fakeChannel) remove() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.removed {
		return
	}
	c.removed = true
	c.state = StateClosed
	close(c.events)
}

func (c *fakeChannel) isRemoved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removed
}

// topicFactory builds fakeChannels for one topic and reports each new
// instance on created.
type topicFactory struct {
	topic        string
	subscribeErr error
	created      chan *fakeChannel
	// hold, when non-nil, blocks the factory until it is closed.
	// entered is signalled before blocking.
	hold    chan struct{}
	entered chan struct{}
}

func newTopicFactory(topic string) *topicFactory {
	return &topicFactory{topic: topic, created: make(chan *fakeChannel, 64)}
}

func (f *topicFactory) build(Client) Channel {
	if f.hold != nil {
		f.entered <- struct{}{}
		<-f.hold
	}
	channel := &fakeChannel{
		topic:        f.topic,
		subscribeErr: f.subscribeErr,
		state:        StateClosed,
		events:       make(chan StatusEvent, 8),
	}
	f.created <- channel
	return channel
}

// next waits for the factory's next instance.
func (f *topicFactory) next(t *testing.T) *fakeChannel {
	t.Helper()
	return testutil.RequireReceive(t, f.created, waitTimeout, "waiting for %s instance", f.topic)
}

// recorder turns callbacks into channels.
type recorder struct {
	subscribed chan Channel
	closed     chan Channel
	timedOut   chan Channel
	errors     chan error
}

func newRecorder() *recorder {
	return &recorder{
		subscribed: make(chan Channel, 64),
		closed:     make(chan Channel, 64),
		timedOut:   make(chan Channel, 64),
		errors:     make(chan error, 64),
	}
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnSubscribe: func(channel Channel) { r.subscribed <- channel },
		OnClose:     func(channel Channel) { r.closed <- channel },
		OnTimeout:   func(channel Channel) { r.timedOut <- channel },
		OnError:     func(_ Channel, err error) { r.errors <- err },
	}
}

type harness struct {
	t       *testing.T
	client  *fakeClient
	clock   *clock.FakeClock
	signals *Signals
	manager *Manager
}

func newHarness(t *testing.T, config Config) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		client:  newFakeClient(),
		clock:   clock.Fake(epoch),
		signals: NewSignals(),
	}
	config.Clock = h.clock
	config.Environment = h.signals
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.Name == "" {
		config.Name = "test"
	}
	h.manager = New(h.client, config)
	return h
}

// start starts the manager and stops it when the test ends.
func (h *harness) start() func() {
	stop := h.manager.Start()
	h.t.Cleanup(stop)
	return stop
}

func (h *harness) status(topic string) TopicStatus {
	h.t.Helper()
	for _, status := range h.manager.Snapshot() {
		if status.Topic == topic {
			return status
		}
	}
	h.t.Fatalf("topic %q not registered", topic)
	return TopicStatus{}
}

// subscribed registers topic, starts the manager if needed and drives
// the first instance to StatusSubscribed.
func (h *harness) subscribed(factory *topicFactory, events *recorder) *fakeChannel {
	h.t.Helper()
	h.manager.AddChannel(factory.topic, factory.build, events.callbacks())
	if !h.manager.Started() {
		h.start()
	}
	channel := factory.next(h.t)
	h.waitSubscribing(channel)
	channel.emit(StatusSubscribed, nil)
	testutil.RequireReceive(h.t, events.subscribed, waitTimeout, "waiting for OnSubscribe")
	return channel
}

// waitSubscribing waits until the manager has called Subscribe on
// channel.
func (h *harness) waitSubscribing(channel *fakeChannel) {
	h.t.Helper()
	testutil.Eventually(h.t, waitTimeout, func() bool {
		return channel.State() == StateJoining || channel.isRemoved()
	}, "waiting for Subscribe on %s", channel.topic)
}
