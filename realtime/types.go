// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"context"
	"time"
)

// ChannelState is the lifecycle state a Channel reports.
type ChannelState string

const (
	StateClosed  ChannelState = "closed"
	StateJoining ChannelState = "joining"
	StateJoined  ChannelState = "joined"
	StateLeaving ChannelState = "leaving"
	StateErrored ChannelState = "errored"
)

// Connected reports whether the state counts as live for the purpose
// of visibility resubscription.
func (s ChannelState) Connected() bool {
	return s == StateJoined || s == StateJoining
}

// Status is a transition reported by a subscribe attempt.
type Status string

const (
	StatusSubscribed   Status = "SUBSCRIBED"
	StatusClosed       Status = "CLOSED"
	StatusTimedOut     Status = "TIMED_OUT"
	StatusChannelError Status = "CHANNEL_ERROR"
)

// StatusEvent is one transition on an attempt's stream. Err is set
// for StatusChannelError and may be nil otherwise.
type StatusEvent struct {
	Status Status
	Err    error
}

// Channel is one subscription instance. The manager creates a new one
// for every attempt and owns it until it passes it to
// Client.RemoveChannel.
type Channel interface {
	Topic() string
	State() ChannelState

	// Subscribe starts the subscription and returns the attempt's
	// status stream. The stream is closed once the channel has been
	// removed. Cancelling ctx abandons the attempt.
	Subscribe(ctx context.Context) (<-chan StatusEvent, error)
}

// Factory builds a fresh Channel for a topic. It is invoked once per
// subscribe attempt.
type Factory func(client Client) Channel

// Session is the authentication state the transport needs.
type Session struct {
	UserID      string
	AccessToken string
	// ExpiresAt is zero when the token does not expire.
	ExpiresAt time.Time
}

// Client is the shared transport connection.
type Client interface {
	// Session returns the current session, refreshing it if needed.
	Session(ctx context.Context) (*Session, error)

	// RealtimeToken returns the access token currently applied to the
	// transport.
	RealtimeToken() string

	// SetRealtimeToken applies a new access token to the transport.
	SetRealtimeToken(token string)

	// RemoveChannel unsubscribes and discards a channel. It is safe to
	// call at any point in the channel's lifecycle, more than once.
	RemoveChannel(channel Channel)
}

// Callbacks are optional per-topic hooks. They run after the manager
// has updated its bookkeeping for the transition, without the manager
// lock held.
type Callbacks struct {
	OnSubscribe func(channel Channel)
	OnClose     func(channel Channel)
	OnTimeout   func(channel Channel)
	OnError     func(channel Channel, err error)
}

// TopicStatus is a point-in-time view of one registered topic.
type TopicStatus struct {
	Topic string `json:"topic"`
	// State is the live instance's state, or empty when there is none.
	State ChannelState `json:"state,omitempty"`
	Live  bool         `json:"live"`
	// Retries is the current retry counter.
	Retries int `json:"retries"`
	// RetryPending is true while a subscribe attempt is scheduled.
	RetryPending bool `json:"retry_pending"`
	// Dormant is true when the retry budget is exhausted.
	Dormant bool `json:"dormant"`
}
