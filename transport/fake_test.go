// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/huddle-chat/huddle/lib/clock"
	"github.com/huddle-chat/huddle/lib/session"
	"github.com/huddle-chat/huddle/lib/testutil"
	"github.com/huddle-chat/huddle/messaging"
)

const waitTimeout = 5 * time.Second

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// syncCall is one pending Sync request. The test answers it with
// reply or leaves it to be cancelled.
type syncCall struct {
	ctx     context.Context
	token   string
	options messaging.SyncOptions
	replies chan syncReply
}

type syncReply struct {
	response *messaging.SyncResponse
	err      error
}

func (c *syncCall) reply(nextBatch string) {
	c.replies <- syncReply{response: &messaging.SyncResponse{NextBatch: nextBatch}}
}

func (c *syncCall) fail(err error) {
	c.replies <- syncReply{err: err}
}

// fakeSyncer hands every Sync call to the test through calls.
type fakeSyncer struct {
	calls chan *syncCall
}

func newFakeSyncer() *fakeSyncer {
	return &fakeSyncer{calls: make(chan *syncCall, 16)}
}

func (s *fakeSyncer) Sync(ctx context.Context, accessToken string, options messaging.SyncOptions) (*messaging.SyncResponse, error) {
	call := &syncCall{ctx: ctx, token: accessToken, options: options, replies: make(chan syncReply, 1)}
	select {
	case s.calls <- call:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case reply := <-call.replies:
		return reply.response, reply.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSyncer) next(t *testing.T) *syncCall {
	t.Helper()
	return testutil.RequireReceive(t, s.calls, waitTimeout, "waiting for a sync request")
}

// fakeSessions is a SessionSource with a fixed session.
type fakeSessions struct {
	mu          sync.Mutex
	current     session.Session
	err         error
	invalidated []string

	// rotate, when set, replaces the access token on invalidation.
	rotate string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{current: session.Session{
		UserID:      "@ada:huddle.test",
		Homeserver:  "https://huddle.test",
		AccessToken: "token-1",
	}}
}

func (s *fakeSessions) Current(ctx context.Context) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	current := s.current
	return &current, nil
}

func (s *fakeSessions) Invalidate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, token)
	if s.rotate != "" && token == s.current.AccessToken {
		s.current.AccessToken = s.rotate
	}
}

func (s *fakeSessions) invalidatedTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.invalidated...)
}

type harness struct {
	syncer   *fakeSyncer
	sessions *fakeSessions
	clock    *clock.FakeClock
	client   *Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		syncer:   newFakeSyncer(),
		sessions: newFakeSessions(),
		clock:    clock.Fake(epoch),
	}
	client, err := NewClient(ClientConfig{
		Homeserver:  h.syncer,
		Sessions:    h.sessions,
		JoinTimeout: 10 * time.Second,
		PollTimeout: 30 * time.Second,
		Clock:       h.clock,
		Logger:      discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	h.client = client
	t.Cleanup(client.Close)
	return h
}
