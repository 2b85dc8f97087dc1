// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/huddle-chat/huddle/messaging"
	"github.com/huddle-chat/huddle/realtime"
)

// timelineLimit caps the events per room in one sync batch.
const timelineLimit = 50

// seenLimit is how many event ids a feed remembers per room.
const seenLimit = 512

// MessageFeed delivers the timelines of followed rooms.
type MessageFeed struct {
	manager   *realtime.Manager
	transport Transport
	handler   func(Message)
	logger    *slog.Logger

	mu    sync.Mutex
	rooms map[string]*seenEvents
}

// NewMessageFeed creates a feed that registers its rooms on manager
// and passes every new event to handler. handler runs on a transport
// goroutine.
func NewMessageFeed(manager *realtime.Manager, transport Transport, handler func(Message), logger *slog.Logger) *MessageFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageFeed{
		manager:   manager,
		transport: transport,
		handler:   handler,
		logger:    logger.With("feed", "messages"),
		rooms:     make(map[string]*seenEvents),
	}
}

// Follow subscribes to roomID's timeline. Following a room twice
// replaces its subscription. The returned function unfollows.
func (f *MessageFeed) Follow(roomID string) (unfollow func()) {
	f.mu.Lock()
	if _, ok := f.rooms[roomID]; !ok {
		f.rooms[roomID] = newSeenEvents(seenLimit)
	}
	f.mu.Unlock()

	topic := MessagesTopic(roomID)
	filter := messaging.SyncFilter{
		Rooms: []string{roomID},
		TimelineTypes: []string{
			messaging.EventTypeMessage,
			messaging.EventTypeReaction,
			messaging.EventTypeRedaction,
		},
		TimelineLimit: timelineLimit,
		ExcludeState:  true,
	}
	f.manager.AddChannel(topic, func(realtime.Client) realtime.Channel {
		return f.transport.Channel(topic, filter, f.deliver)
	}, connectionLogger(f.logger, topic))
	return func() { f.Unfollow(roomID) }
}

// Unfollow stops following roomID.
func (f *MessageFeed) Unfollow(roomID string) {
	f.manager.RemoveChannel(MessagesTopic(roomID))
	f.mu.Lock()
	delete(f.rooms, roomID)
	f.mu.Unlock()
}

// Rooms returns the followed room ids, sorted.
func (f *MessageFeed) Rooms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	rooms := make([]string, 0, len(f.rooms))
	for room := range f.rooms {
		rooms = append(rooms, room)
	}
	slices.Sort(rooms)
	return rooms
}

func (f *MessageFeed) deliver(topic string, batch *messaging.SyncResponse) {
	roomID := strings.TrimPrefix(topic, MessagesPrefix)
	joined, ok := batch.Rooms.Join[roomID]
	if !ok {
		return
	}

	var fresh []Message
	f.mu.Lock()
	seen := f.rooms[roomID]
	if seen == nil {
		f.mu.Unlock()
		return
	}
	for _, event := range joined.Timeline.Events {
		message, ok := DecodeEvent(roomID, event)
		if !ok || !seen.add(message.EventID) {
			continue
		}
		fresh = append(fresh, message)
	}
	f.mu.Unlock()

	for _, message := range fresh {
		f.handler(message)
	}
}

// connectionLogger returns callbacks that log a topic's connection
// transitions.
func connectionLogger(logger *slog.Logger, topic string) realtime.Callbacks {
	logger = logger.With("topic", topic)
	return realtime.Callbacks{
		OnSubscribe: func(realtime.Channel) {
			logger.Info("feed connected")
		},
		OnClose: func(realtime.Channel) {
			logger.Info("feed connection closed")
		},
		OnTimeout: func(realtime.Channel) {
			logger.Warn("feed connection timed out")
		},
		OnError: func(_ realtime.Channel, err error) {
			logger.Warn("feed connection failed", "error", err)
		},
	}
}
