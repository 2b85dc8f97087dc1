// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/huddle-chat/huddle/messaging"
	"github.com/huddle-chat/huddle/realtime"
)

// Presence is one contact's presence update.
type Presence struct {
	UserID          string
	State           string
	LastActiveAgoMS int64
	CurrentlyActive bool
	StatusMessage   string
}

// NotificationHandlers receive notification feed output. Either may be
// nil. They run on transport goroutines.
type NotificationHandlers struct {
	OnMention  func(Message)
	OnPresence func(Presence)
}

// NotificationFeed reports mentions of one user across all joined
// rooms, and presence changes of the user's contacts.
type NotificationFeed struct {
	manager   *realtime.Manager
	transport Transport
	userID    string
	handlers  NotificationHandlers
	logger    *slog.Logger

	mu   sync.Mutex
	seen *seenEvents
}

// NewNotificationFeed creates a feed for userID on manager.
func NewNotificationFeed(manager *realtime.Manager, transport Transport, userID string, handlers NotificationHandlers, logger *slog.Logger) *NotificationFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationFeed{
		manager:   manager,
		transport: transport,
		userID:    userID,
		handlers:  handlers,
		logger:    logger.With("feed", "notifications", "user_id", userID),
		seen:      newSeenEvents(seenLimit),
	}
}

// Register adds the feed's topics to the manager.
func (f *NotificationFeed) Register() {
	notifications := NotificationsTopic(f.userID)
	notificationFilter := messaging.SyncFilter{
		TimelineTypes: []string{messaging.EventTypeMessage},
		TimelineLimit: 20,
		ExcludeState:  true,
	}
	f.manager.AddChannel(notifications, func(realtime.Client) realtime.Channel {
		return f.transport.Channel(notifications, notificationFilter, f.deliverMentions)
	}, connectionLogger(f.logger, notifications))

	presence := PresenceTopic(f.userID)
	presenceFilter := messaging.SyncFilter{ExcludeRoomData: true, IncludePresence: true}
	f.manager.AddChannel(presence, func(realtime.Client) realtime.Channel {
		return f.transport.Channel(presence, presenceFilter, f.deliverPresence)
	}, connectionLogger(f.logger, presence))
}

// Unregister removes the feed's topics.
func (f *NotificationFeed) Unregister() {
	f.manager.RemoveChannel(NotificationsTopic(f.userID))
	f.manager.RemoveChannel(PresenceTopic(f.userID))
}

// Mentions reports whether message mentions userID.
func Mentions(message Message, userID string) bool {
	if message.Kind != KindMessage || message.Sender == userID {
		return false
	}
	return message.MentionsRoom || slices.Contains(message.Mentions, userID)
}

func (f *NotificationFeed) deliverMentions(topic string, batch *messaging.SyncResponse) {
	var mentions []Message
	f.mu.Lock()
	for roomID, joined := range batch.Rooms.Join {
		for _, event := range joined.Timeline.Events {
			message, ok := DecodeEvent(roomID, event)
			if !ok || !Mentions(message, f.userID) || !f.seen.add(message.EventID) {
				continue
			}
			mentions = append(mentions, message)
		}
	}
	f.mu.Unlock()

	slices.SortFunc(mentions, func(a, b Message) int { return a.Timestamp.Compare(b.Timestamp) })
	if f.handlers.OnMention == nil {
		return
	}
	for _, message := range mentions {
		f.handlers.OnMention(message)
	}
}

func (f *NotificationFeed) deliverPresence(topic string, batch *messaging.SyncResponse) {
	if f.handlers.OnPresence == nil {
		return
	}
	for _, event := range batch.Presence.Events {
		if event.Type != messaging.EventTypePresence || event.Sender == "" {
			continue
		}
		f.handlers.OnPresence(Presence{
			UserID:          event.Sender,
			State:           event.Content.Presence,
			LastActiveAgoMS: event.Content.LastActiveAgo,
			CurrentlyActive: event.Content.CurrentlyActive,
			StatusMessage:   event.Content.StatusMsg,
		})
	}
}
