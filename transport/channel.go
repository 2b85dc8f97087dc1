// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/huddle-chat/huddle/messaging"
	"github.com/huddle-chat/huddle/realtime"
)

// ErrChannelRemoved is returned by Subscribe on a removed channel.
var ErrChannelRemoved = errors.New("transport: channel removed")

// ErrAlreadySubscribed is returned by a second Subscribe call. A
// channel serves one attempt.
var ErrAlreadySubscribed = errors.New("transport: channel already subscribed")

// errJoinTimeout is the cancellation cause of an initial sync that ran
// past the join timeout.
var errJoinTimeout = errors.New("transport: join timed out")

// Handler receives sync batches. It runs on the channel's polling
// goroutine; a slow handler delays the next poll.
type Handler func(topic string, batch *messaging.SyncResponse)

// SyncChannel is one subscribe attempt over /sync.
type SyncChannel struct {
	client  *Client
	topic   string
	filter  string
	handler Handler
	logger  *slog.Logger

	mu         sync.Mutex
	state      realtime.ChannelState
	attemptID  string
	subscribed bool
	removed    bool
	cancel     context.CancelFunc

	// failed is owned by the polling goroutine.
	failed bool
}

var _ realtime.Channel = (*SyncChannel)(nil)

// Topic returns the channel's topic.
func (c *SyncChannel) Topic() string { return c.topic }

// State returns the channel's current state.
func (c *SyncChannel) State() realtime.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AttemptID returns the id assigned at Subscribe, or "" before.
func (c *SyncChannel) AttemptID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attemptID
}

// Subscribe starts polling. The returned stream reports
// StatusSubscribed once the initial sync succeeds, StatusTimedOut if
// it does not finish within the join timeout, StatusChannelError when
// a sync fails, and StatusClosed when polling stops because ctx was
// cancelled or the channel was removed. The stream is closed when the
// polling goroutine exits.
func (c *SyncChannel) Subscribe(ctx context.Context) (<-chan realtime.StatusEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.removed {
		return nil, ErrChannelRemoved
	}
	if c.subscribed {
		return nil, ErrAlreadySubscribed
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.subscribed = true
	c.cancel = cancel
	c.attemptID = uuid.NewString()
	c.state = realtime.StateJoining
	c.logger = c.logger.With("attempt_id", c.attemptID)

	events := make(chan realtime.StatusEvent, 4)
	c.client.running.Add(1)
	go func() {
		defer c.client.running.Done()
		c.run(runCtx, events)
	}()
	return events, nil
}

func (c *SyncChannel) remove() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.removed {
		return
	}
	c.removed = true
	if c.cancel == nil {
		return
	}
	if c.state == realtime.StateJoining || c.state == realtime.StateJoined {
		c.state = realtime.StateLeaving
	}
	c.cancel()
}

func (c *SyncChannel) setState(state realtime.ChannelState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.removed && state != realtime.StateClosed {
		return
	}
	c.state = state
}

func (c *SyncChannel) run(ctx context.Context, events chan realtime.StatusEvent) {
	defer close(events)
	defer c.cancel()

	since, ok := c.join(ctx, events)
	if ok {
		c.poll(ctx, events, since)
	}

	// A failed attempt keeps its stream open until it is removed.
	<-ctx.Done()
	c.setState(realtime.StateClosed)
	if !c.failed {
		c.send(ctx, events, realtime.StatusEvent{Status: realtime.StatusClosed})
	}
	c.logger.Debug("channel closed")
}

// join runs the initial sync. It reports the next batch token and
// whether the channel reached the joined state.
func (c *SyncChannel) join(ctx context.Context, events chan realtime.StatusEvent) (string, bool) {
	joinCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	timer := c.client.clock.AfterFunc(c.client.joinTimeout, func() { cancel(errJoinTimeout) })
	defer timer.Stop()

	token := c.client.RealtimeToken()
	if token == "" {
		c.fail(ctx, events, realtime.ErrNoAccessToken)
		return "", false
	}
	response, err := c.client.homeserver.Sync(joinCtx, token, messaging.SyncOptions{
		SetTimeout: true,
		Filter:     c.filter,
	})
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return "", false
		case context.Cause(joinCtx) == errJoinTimeout:
			c.failed = true
			c.setState(realtime.StateErrored)
			c.logger.Warn("join timed out", "join_timeout", c.client.joinTimeout)
			c.send(ctx, events, realtime.StatusEvent{Status: realtime.StatusTimedOut})
		default:
			c.fail(ctx, events, c.classify(token, err))
		}
		return "", false
	}

	c.setState(realtime.StateJoined)
	c.logger.Info("channel joined", "next_batch", response.NextBatch)
	if !c.send(ctx, events, realtime.StatusEvent{Status: realtime.StatusSubscribed}) {
		return "", false
	}
	c.deliver(response)
	return response.NextBatch, true
}

// poll long-polls until ctx is done or a sync fails.
func (c *SyncChannel) poll(ctx context.Context, events chan realtime.StatusEvent, since string) {
	timeoutMS := int(c.client.pollTimeout.Milliseconds())
	for ctx.Err() == nil {
		token := c.client.RealtimeToken()
		if token == "" {
			c.fail(ctx, events, realtime.ErrNoAccessToken)
			return
		}
		response, err := c.client.homeserver.Sync(ctx, token, messaging.SyncOptions{
			Since:      since,
			Timeout:    timeoutMS,
			SetTimeout: true,
			Filter:     c.filter,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.fail(ctx, events, c.classify(token, err))
			return
		}
		since = response.NextBatch
		c.deliver(response)
	}
}

func (c *SyncChannel) classify(token string, err error) error {
	if messaging.IsUnknownToken(err) {
		return c.client.rejected(token, err)
	}
	return err
}

func (c *SyncChannel) fail(ctx context.Context, events chan realtime.StatusEvent, err error) {
	c.failed = true
	c.setState(realtime.StateErrored)
	c.logger.Warn("channel failed", "error", err)
	c.send(ctx, events, realtime.StatusEvent{Status: realtime.StatusChannelError, Err: err})
}

func (c *SyncChannel) deliver(response *messaging.SyncResponse) {
	if c.handler != nil {
		c.handler(c.topic, response)
	}
}

// send delivers event unless ctx ends first. A final event after ctx
// ends is buffered if there is room and dropped otherwise.
func (c *SyncChannel) send(ctx context.Context, events chan realtime.StatusEvent, event realtime.StatusEvent) bool {
	if ctx.Err() != nil {
		select {
		case events <- event:
		default:
		}
		return false
	}
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
