// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/huddle-chat/huddle/lib/clock"
	"github.com/huddle-chat/huddle/lib/fingerprint"
	"github.com/huddle-chat/huddle/lib/session"
	"github.com/huddle-chat/huddle/messaging"
	"github.com/huddle-chat/huddle/realtime"
)

const (
	// DefaultJoinTimeout bounds the initial sync of a subscribe
	// attempt.
	DefaultJoinTimeout = 10 * time.Second

	// DefaultPollTimeout is the server-side wait of each long poll.
	DefaultPollTimeout = 30 * time.Second
)

// Syncer performs /sync requests. *messaging.Client implements it.
type Syncer interface {
	Sync(ctx context.Context, accessToken string, options messaging.SyncOptions) (*messaging.SyncResponse, error)
}

// SessionSource supplies the current session and accepts reports of
// rejected access tokens. *session.Provider implements it.
type SessionSource interface {
	Current(ctx context.Context) (*session.Session, error)
	Invalidate(token string)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Homeserver Syncer
	Sessions   SessionSource

	// JoinTimeout bounds each attempt's initial sync. Zero uses
	// DefaultJoinTimeout.
	JoinTimeout time.Duration

	// PollTimeout is the long-poll wait. Zero uses DefaultPollTimeout.
	PollTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Client is the shared realtime connection state: the applied access
// token and the set of live channels.
type Client struct {
	homeserver  Syncer
	sessions    SessionSource
	joinTimeout time.Duration
	pollTimeout time.Duration
	clock       clock.Clock
	logger      *slog.Logger

	mu       sync.Mutex
	token    string
	channels map[*SyncChannel]struct{}
	closed   bool

	running sync.WaitGroup
}

var _ realtime.Client = (*Client)(nil)

// NewClient creates a Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Homeserver == nil {
		return nil, errors.New("transport: homeserver is required")
	}
	if config.Sessions == nil {
		return nil, errors.New("transport: session source is required")
	}
	if config.JoinTimeout <= 0 {
		config.JoinTimeout = DefaultJoinTimeout
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = DefaultPollTimeout
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		homeserver:  config.Homeserver,
		sessions:    config.Sessions,
		joinTimeout: config.JoinTimeout,
		pollTimeout: config.PollTimeout,
		clock:       config.Clock,
		logger:      config.Logger,
		channels:    make(map[*SyncChannel]struct{}),
	}, nil
}

// Session returns the current session from the session source.
func (c *Client) Session(ctx context.Context) (*realtime.Session, error) {
	current, err := c.sessions.Current(ctx)
	if err != nil {
		return nil, &SessionError{Err: err}
	}
	result := &realtime.Session{UserID: current.UserID, AccessToken: current.AccessToken}
	if expiry, ok := current.Expiry(); ok {
		result.ExpiresAt = expiry
	}
	return result, nil
}

// RealtimeToken returns the token channels currently poll with.
func (c *Client) RealtimeToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// SetRealtimeToken replaces the token. Running channels use it from
// their next request.
func (c *Client) SetRealtimeToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	c.logger.Debug("realtime token set", "token", fingerprint.Token(token))
}

// Channel creates an unsubscribed channel for topic. filter selects
// what the channel's syncs return; handler receives every batch,
// including the initial one.
func (c *Client) Channel(topic string, filter messaging.SyncFilter, handler Handler) *SyncChannel {
	channel := &SyncChannel{
		client:  c,
		topic:   topic,
		filter:  messaging.BuildFilter(filter),
		handler: handler,
		state:   realtime.StateClosed,
		logger:  c.logger.With("topic", topic),
	}
	c.mu.Lock()
	if !c.closed {
		c.channels[channel] = struct{}{}
	}
	c.mu.Unlock()
	return channel
}

// RemoveChannel stops and discards channel. Channels from another
// client are ignored.
func (c *Client) RemoveChannel(channel realtime.Channel) {
	syncChannel, ok := channel.(*SyncChannel)
	if !ok || syncChannel.client != c {
		return
	}
	c.mu.Lock()
	delete(c.channels, syncChannel)
	c.mu.Unlock()
	syncChannel.remove()
}

// ChannelCount returns the number of channels not yet removed.
func (c *Client) ChannelCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.channels)
}

// Close removes every channel and waits for their polling goroutines
// to exit. Channels created afterwards are removed at once.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	channels := make([]*SyncChannel, 0, len(c.channels))
	for channel := range c.channels {
		channels = append(channels, channel)
	}
	clear(c.channels)
	c.mu.Unlock()

	for _, channel := range channels {
		channel.remove()
	}
	c.running.Wait()
}

// rejected reports a token the homeserver refused. The error returned
// wraps realtime.ErrTokenExpired.
func (c *Client) rejected(token string, err error) error {
	c.sessions.Invalidate(token)
	return fmt.Errorf("%w: %w", realtime.ErrTokenExpired, err)
}

// SessionError is returned by Client.Session when the session source
// fails. Its message carries only the homeserver error code, so a
// failed refresh is not mistaken for an expired access token.
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string {
	var matrixErr *messaging.MatrixError
	if errors.As(e.Err, &matrixErr) {
		return "transport: session unavailable: " + matrixErr.Code
	}
	return "transport: session unavailable: " + e.Err.Error()
}

func (e *SessionError) Unwrap() error { return e.Err }
